package rules

import (
	"path"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/engine/jobs"
)

// NasmObjects assembles its sources in parallel. There is no link or
// archive step; the artifact is the list of produced object files, which
// binary rules fold into their link inputs.
type NasmObjects struct {
	Name  string   `papyrus:"name,required"`
	Srcs  []string `papyrus:"srcs,required,nonempty"`
	Flags []string `papyrus:"flags"`

	env    *Env
	target domain.Target
}

// RuleName returns the rule's declared name.
func (n *NasmObjects) RuleName() string { return n.Name }

// Target returns the address the rule was declared at.
func (n *NasmObjects) Target() domain.Target { return n.target }

// CreateRootJob seeds the rule's root job.
func (n *NasmObjects) CreateRootJob(sys *jobs.System, mode *domain.Mode, tc *domain.Toolchain) (*jobs.Job, error) {
	display := jobs.Display{Verb: "Building", Short: n.Name, Detail: n.target.String()}
	return sys.NewJob(mode, tc, display, n.start), nil
}

func (n *NasmObjects) start(rc *jobs.RunContext) jobs.Outcome {
	ids := make([]jobs.ID, 0, len(n.Srcs))
	for _, src := range n.Srcs {
		id, err := n.assembleJob(rc, src)
		if err != nil {
			return jobs.Fail(err)
		}
		ids = append(ids, id)
	}
	return jobs.Defer(jobs.Deferral{
		WaitFor: ids,
		Resume:  n.collect(ids),
	})
}

func (n *NasmObjects) assembleJob(rc *jobs.RunContext, src string) (jobs.ID, error) {
	root := n.env.Reg.Root()
	abs, rootRel, err := absSource(root, src)
	if err != nil {
		return 0, err
	}
	return n.env.Reg.EnsureJob(rc.Sys, rc.Mode, n.target, "assemble:"+rootRel, func() (*jobs.Job, error) {
		display := jobs.Display{Verb: "Assembling", Short: path.Base(rootRel), Detail: abs}
		obj := objectPath(root, rc.Mode.Name, rootRel)
		fn := func(rc *jobs.RunContext) jobs.Outcome {
			nasm := &rc.Toolchain.Nasm
			if nasm.Assembler == "" {
				return jobs.Fail(zerr.With(zerr.New("toolchain has no nasm assembler"), "toolchain", rc.Toolchain.Name))
			}
			if err := ensureDirFor(obj); err != nil {
				return jobs.Fail(err)
			}
			argv := []string{nasm.Assembler}
			if nasm.OutputFormat != "" {
				argv = append(argv, "-f", nasm.OutputFormat)
			}
			argv = append(argv, n.Flags...)
			argv = append(argv, abs, "-o", obj)

			res, err := runTool(rc.Ctx, n.env.Runner, argv)
			if err != nil {
				return jobs.Fail(zerr.With(err, "src", rootRel))
			}
			return jobs.Success(&ObjectArtifact{Path: obj, Duration: res.Duration})
		}
		return rc.NewChild(display, fn), nil
	})
}

// collect gathers the object paths once every assemble job succeeded.
func (n *NasmObjects) collect(ids []jobs.ID) jobs.Fn {
	return func(rc *jobs.RunContext) jobs.Outcome {
		paths := make([]string, 0, len(ids))
		for _, id := range ids {
			art, err := rc.Sys.Artifact(id)
			if err != nil {
				return jobs.Fail(err)
			}
			obj, ok := art.(*ObjectArtifact)
			if !ok {
				return jobs.Fail(zerr.With(zerr.New("unexpected assemble artifact shape"), "target", n.target.String()))
			}
			paths = append(paths, obj.Path)
		}
		return jobs.Success(&ObjectsArtifact{Paths: paths})
	}
}
