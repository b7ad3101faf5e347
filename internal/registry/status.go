package registry

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	json "github.com/goccy/go-json"
)

// PoolStatus is a point-in-time view of one pool. Pool is unique within the
// registry; Template is the template name, which distinct templates may share.
type PoolStatus struct {
	Pool     string `json:"pool"`
	Template string `json:"template"`
	InUse    int    `json:"in_use"`
	Free     int    `json:"free"`
	Total    int    `json:"total"`
	Limit    int    `json:"limit,omitempty"`
}

// Status returns a snapshot of every pool ordered by pool id.
func (r *Registry) Status() []PoolStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

// WriteStatusJSON writes the status snapshot as a JSON array without HTML escaping.
func (r *Registry) WriteStatusJSON(w io.Writer) error {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(r.Status()); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write encoded json: %w", err)
	}
	return nil
}

func (r *Registry) statusLocked() []PoolStatus {
	out := make([]PoolStatus, 0, len(r.prefabs))
	for template, p := range r.prefabs {
		total := p.Len()
		free := p.Free()
		out = append(out, PoolStatus{
			Pool:     p.Name(),
			Template: template.Name(),
			InUse:    total - free,
			Free:     free,
			Total:    total,
			Limit:    p.Limit(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pool < out[j].Pool })
	return out
}
