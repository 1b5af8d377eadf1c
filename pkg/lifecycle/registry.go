package lifecycle

// member is one registered value. listener is nil for members added through
// RegisterScoped.
type member struct {
	scoped   Scoped
	listener Listener
	key      string
}

// registry is the insertion-ordered member set of one scope.
type registry struct {
	index map[Scoped]*member
	order []*member
	keys  map[string]*member
}

func newRegistry() *registry {
	return &registry{
		index: make(map[Scoped]*member),
		keys:  make(map[string]*member),
	}
}

func (r *registry) lookup(m Scoped) (*member, bool) {
	e, ok := r.index[m]
	return e, ok
}

// keyOwner returns the listener currently holding key.
func (r *registry) keyOwner(key string) (*member, bool) {
	e, ok := r.keys[key]
	return e, ok
}

// add appends a new member. The caller has checked it is absent.
func (r *registry) add(e *member) {
	r.index[e.scoped] = e
	r.order = append(r.order, e)
	if e.listener != nil {
		r.keys[e.key] = e
	}
}

// promote turns a Scoped-only member into a listener member.
func (r *registry) promote(e *member, l Listener, key string) {
	e.listener = l
	e.key = key
	r.keys[key] = e
}

// keyOf returns the key captured when l joined.
func (r *registry) keyOf(l Listener) (string, bool) {
	e, ok := r.index[l]
	if !ok || e.listener == nil {
		return "", false
	}
	return e.key, true
}

// members returns a snapshot of every member in registration order.
func (r *registry) members() []*member {
	return append([]*member(nil), r.order...)
}

// listeners returns a snapshot of the listener members in registration order.
func (r *registry) listeners() []*member {
	out := make([]*member, 0, len(r.keys))
	for _, e := range r.order {
		if e.listener != nil {
			out = append(out, e)
		}
	}
	return out
}

func (r *registry) len() int {
	return len(r.order)
}
