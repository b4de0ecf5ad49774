package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/lndup/lndup/pkg/linker"
	"github.com/lndup/lndup/pkg/logger"
)

// Stage names the phase a non-fatal problem occurred in.
type Stage string

const (
	StageEnumerate Stage = "enumerate"
	StageRead      Stage = "read"
	StageLink      Stage = "link"
)

// Problem is one non-fatal per-path failure. Problems stream through the
// renderer as they occur and never change the exit code.
type Problem struct {
	Stage Stage
	Path  string
	Err   error
}

// Stats is the end-of-run accounting rendered by Summary.
type Stats struct {
	Files       int
	Buckets     int
	Classes     int
	Operations  int
	Bytes       uint64
	Linked      int
	LinkedBytes uint64
	Problems    int
	Mutated     bool
}

// Renderer receives planned/executed operations and problems. The raw
// renderer writes the scripting contract to stdout; the human renderer
// routes through the shared logger.
type Renderer interface {
	Operation(op linker.Operation, executed bool)
	Problem(p Problem)
	Summary(s Stats)
}

type rawRenderer struct {
	w io.Writer
}

// NewRaw returns the machine-readable renderer: one KEEP<TAB>REPLACE line
// per link and a !-prefixed line per problem, written immediately,
// bypassing all verbosity settings. Brace compression never applies.
func NewRaw(w io.Writer) Renderer {
	return &rawRenderer{w: w}
}

func (r *rawRenderer) Operation(op linker.Operation, executed bool) {
	fmt.Fprintf(r.w, "%s\t%s\n", op.Keep, op.Replace)
}

func (r *rawRenderer) Problem(p Problem) {
	fmt.Fprintf(r.w, "!\t%s\t%s\t%s\n", p.Stage, p.Path, flatten(p.Err.Error()))
}

func (r *rawRenderer) Summary(Stats) {}

// flatten keeps a message on one line so the error shape stays parseable.
func flatten(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.ReplaceAll(msg, "\t", " ")
}

type humanRenderer struct {
	log    *logrus.Entry
	braces bool
}

// NewHuman returns the verbosity-gated renderer for people.
func NewHuman(braces bool) Renderer {
	return &humanRenderer{
		log:    logger.GetLogger("dedup"),
		braces: braces,
	}
}

func (h *humanRenderer) Operation(op linker.Operation, executed bool) {
	pair := Pair(op.Keep, op.Replace, h.braces)
	if executed {
		h.log.Infof("Hardlinked %s", pair)
		return
	}
	h.log.Infof("Would hardlink %s", pair)
}

func (h *humanRenderer) Problem(p Problem) {
	switch p.Stage {
	case StageEnumerate:
		h.log.WithError(p.Err).Debugf("Failed enumerating: %q", p.Path)
	case StageRead:
		h.log.WithError(p.Err).Warnf("Failed reading: %q", p.Path)
	default:
		h.log.WithError(p.Err).Warnf("Failed hardlinking: %q", p.Path)
	}
}

func (h *humanRenderer) Summary(s Stats) {
	if s.Operations == 0 {
		h.log.Infof("No duplicates found (%d files considered)", s.Files)
		return
	}

	if !s.Mutated {
		h.log.WithField("reclaimable_space", humanize.IBytes(s.Bytes)).
			Infof("Planned %d hardlinks across %d duplicate groups (%d files considered, %d problems)",
				s.Operations, s.Classes, s.Files, s.Problems)
		return
	}

	h.log.WithField("reclaimed_space", humanize.IBytes(s.LinkedBytes)).
		Infof("Hardlinked %d of %d planned files across %d duplicate groups (%d problems)",
			s.Linked, s.Operations, s.Classes, s.Problems)
}
