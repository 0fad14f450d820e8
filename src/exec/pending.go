package exec

import (
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/quill-build/quill/src/quillpath"
)

// pendingTargets tracks targets unlinked in preparation for a rule run
// until that run succeeds, so that Engine.Close (via flush) can unlink
// any target a failed or unfinished run may have left half-written.
// Kept as a field on Engine rather than a package-level global so that
// multiple Engines never share cleanup state.
type pendingTargets struct {
	mu   sync.Mutex
	root string
	set  map[quillpath.Path]struct{}
}

func newPendingTargets(root string) *pendingTargets {
	return &pendingTargets{root: root, set: map[quillpath.Path]struct{}{}}
}

func (p *pendingTargets) add(targets []quillpath.Path) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range targets {
		p.set[t] = struct{}{}
	}
}

func (p *pendingTargets) remove(targets []quillpath.Path) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range targets {
		delete(p.set, t)
	}
}

// flush unlinks every target still registered as pending, aggregating
// failures with go-multierror rather than stopping at the first one -
// a best-effort cleanup pass should not abandon the rest of the set
// because one removal failed.
func (p *pendingTargets) flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result error
	for t := range p.set {
		if !t.Local() {
			continue
		}
		if err := os.Remove(t.UnderBuildRoot(p.root)); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
		delete(p.set, t)
	}
	return result
}
