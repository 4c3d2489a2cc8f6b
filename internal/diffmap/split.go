package diffmap

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/reva-dev/reva/internal/model"
)

// SplitDiff parses a repository-level unified diff and returns one FileChange
// per file, reconstructing a standalone per-file patch from its fragments.
// Binary files are skipped since they carry no commentable lines.
func SplitDiff(raw string) ([]model.FileChange, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	var files []model.FileChange
	for _, f := range parsed {
		if f.IsBinary {
			continue
		}

		name := f.NewName
		if name == "" {
			name = f.OldName
		}

		fc := model.FileChange{Filename: name}

		var b strings.Builder
		for _, frag := range f.TextFragments {
			b.WriteString(frag.Header())
			b.WriteString("\n")
			for _, line := range frag.Lines {
				switch line.Op {
				case gitdiff.OpAdd:
					fc.Additions++
				case gitdiff.OpDelete:
					fc.Deletions++
				}
				b.WriteString(line.String())
				if !strings.HasSuffix(line.Line, "\n") {
					b.WriteString("\n")
				}
			}
		}
		fc.Patch = b.String()

		files = append(files, fc)
	}

	return files, nil
}
