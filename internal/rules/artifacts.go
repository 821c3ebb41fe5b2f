package rules

import "time"

// ObjectArtifact is published by a compile or assemble job.
type ObjectArtifact struct {
	Path     string
	Duration time.Duration
}

// ObjectsArtifact is published by rules that produce a batch of object
// files with no link or archive step.
type ObjectsArtifact struct {
	Paths []string
}

// ArchiveArtifact is published by a static-library rule. LinkInputs is the
// archive itself plus every transitive public link input, so binaries
// linking this library see them all exactly once.
type ArchiveArtifact struct {
	Path        string
	IncludeDirs []string
	LinkInputs  []string
	Duration    time.Duration
}

// ExecutableArtifact is published by a binary rule's link step.
type ExecutableArtifact struct {
	Path     string
	Size     int64
	Duration time.Duration
}
