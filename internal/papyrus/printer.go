package papyrus

import (
	"strconv"
	"strings"
)

// Format renders a value as Papyrus source. Resolved trees print in a form
// the parser accepts again; unresolved calls print in their surface syntax.
func Format(v *Value) string {
	var sb strings.Builder
	formatValue(&sb, v, 0)
	return sb.String()
}

// FormatFile renders an array of objects as a sequence of top-level
// statements separated by blank lines.
func FormatFile(file *Value) string {
	if file == nil || file.Kind != ArrayKind {
		return Format(file)
	}
	parts := make([]string, len(file.Elems))
	for i, obj := range file.Elems {
		parts[i] = Format(obj)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func formatValue(sb *strings.Builder, v *Value, indent int) {
	switch v.Kind {
	case StringKind:
		sb.WriteString(quote(v.Str))
	case NumberKind:
		sb.WriteString(strconv.FormatFloat(v.Num, 'g', -1, 64))
	case BoolKind:
		if v.Bool {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case WildcardKind:
		sb.WriteString("_")
	case IdentKind:
		sb.WriteString(v.Str)
	case ArrayKind:
		formatSeq(sb, "[", "]", v.Elems, indent)
	case TupleKind:
		formatSeq(sb, "(", ")", v.Elems, indent)
	case MapKind:
		if len(v.Entries) == 0 {
			sb.WriteString("{}")
			return
		}
		sb.WriteString("{\n")
		for _, e := range v.Entries {
			pad(sb, indent+1)
			sb.WriteString(e.Key.String())
			sb.WriteString(" = ")
			formatValue(sb, e.Value, indent+1)
			sb.WriteString(",\n")
		}
		pad(sb, indent)
		sb.WriteString("}")
	case ObjectKind:
		sb.WriteString(v.Str)
		if len(v.Fields) == 0 {
			sb.WriteString("()")
			return
		}
		sb.WriteString("(\n")
		for _, f := range v.Fields {
			pad(sb, indent+1)
			sb.WriteString(f.Name)
			sb.WriteString(" = ")
			formatValue(sb, f.Value, indent+1)
			sb.WriteString(",\n")
		}
		pad(sb, indent)
		sb.WriteString(")")
	case CallKind:
		formatCall(sb, v, indent)
	case ConcatKind:
		formatValue(sb, v.Left, indent)
		sb.WriteString(" + ")
		formatValue(sb, v.Right, indent)
	}
}

func formatCall(sb *strings.Builder, v *Value, indent int) {
	if v.Str == "select" && len(v.Elems) == 2 {
		sb.WriteString("select(")
		formatValue(sb, v.Elems[0], indent)
		sb.WriteString(" => ")
		formatValue(sb, v.Elems[1], indent)
		sb.WriteString(")")
		return
	}
	sb.WriteString(v.Str)
	sb.WriteString("(")
	for i, e := range v.Elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		formatValue(sb, e, indent)
	}
	for i, f := range v.Fields {
		if i > 0 || len(v.Elems) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(" = ")
		formatValue(sb, f.Value, indent)
	}
	sb.WriteString(")")
}

func formatSeq(sb *strings.Builder, open, closing string, elems []*Value, indent int) {
	sb.WriteString(open)
	for i, e := range elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		formatValue(sb, e, indent)
	}
	sb.WriteString(closing)
}

func pad(sb *strings.Builder, indent int) {
	for range indent {
		sb.WriteString("    ")
	}
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
