package cart

import "sync"

// Draft is the bill being edited. Every change rebuilds the preview, so the
// preview always matches the current cart and metadata.
type Draft struct {
	mu      sync.Mutex
	builder *Builder
	cart    Cart
	meta    Metadata
	preview Receipt
	err     error
}

func NewDraft(builder *Builder) *Draft {
	d := &Draft{builder: builder}
	d.recompute()
	return d
}

func (d *Draft) Add(candidate *Candidate, quantity int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := d.cart.AddItem(candidate, quantity)
	if err != nil {
		return err
	}
	d.cart = next
	d.recompute()
	return nil
}

func (d *Draft) Remove(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cart = d.cart.RemoveItem(index)
	d.recompute()
}

func (d *Draft) SetPhone(phone string) {
	d.update(func(m *Metadata) { m.Phone = phone })
}

func (d *Draft) SetMapLink(link string) {
	d.update(func(m *Metadata) { m.MapLink = link })
}

func (d *Draft) SetNotes(notes string) {
	d.update(func(m *Metadata) { m.Notes = notes })
}

func (d *Draft) Cart() Cart {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cart
}

func (d *Draft) Metadata() Metadata {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta
}

// Preview returns the receipt for the current state, or the validation
// error that keeps it from being built.
func (d *Draft) Preview() (Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.preview, d.err
}

// Reset discards the bill after a successful checkout.
func (d *Draft) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cart = Cart{}
	d.meta = Metadata{}
	d.recompute()
}

func (d *Draft) update(fn func(*Metadata)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.meta)
	d.recompute()
}

func (d *Draft) recompute() {
	d.preview, d.err = d.builder.Build(d.cart, d.meta)
}
