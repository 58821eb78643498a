package tournament

import "strconv"

// Identity identifies who is behind a participant: either a registered user
// or a guest display name. Exactly one side is set.
type Identity struct {
	UserID *int
	Guest  *string
}

func UserIdentity(id int) Identity       { return Identity{UserID: &id} }
func GuestIdentity(name string) Identity { return Identity{Guest: &name} }

func (i Identity) Equal(other Identity) bool {
	if i.UserID != nil && other.UserID != nil {
		return *i.UserID == *other.UserID
	}
	if i.Guest != nil && other.Guest != nil {
		return *i.Guest == *other.Guest
	}
	return false
}

func (i Identity) String() string {
	if i.UserID != nil {
		return "user:" + strconv.Itoa(*i.UserID)
	}
	if i.Guest != nil {
		return "guest:" + *i.Guest
	}
	return "unknown"
}

// Participant is one admitted player. Banned participants stay in the roster
// for history but are excluded from future round generation.
type Participant struct {
	Alias    string   `json:"alias"`
	Identity Identity `json:"-"`
	Banned   bool     `json:"banned"`
}

// cloneView copies the participant for a snapshot, reusing an earlier copy of
// the same alias so one snapshot holds one object per participant.
func (p *Participant) cloneView(seen map[string]*Participant) *Participant {
	if cp, ok := seen[p.Alias]; ok {
		return cp
	}
	cp := &Participant{Alias: p.Alias, Identity: p.Identity, Banned: p.Banned}
	seen[p.Alias] = cp
	return cp
}

// Registry tracks the participants admitted to a single tournament, in
// admission order. The order is the default seed order when the bracket is
// generated. Not safe for concurrent use on its own: the owning session
// serializes access.
type Registry struct {
	creator Identity
	roster  []*Participant
	byAlias map[string]*Participant
	open    bool
}

func NewRegistry(creator Identity) *Registry {
	return &Registry{
		creator: creator,
		byAlias: make(map[string]*Participant),
		open:    true,
	}
}

// Admit adds a participant to the roster. Aliases must be unique within the
// tournament, and admission is only possible while the session is in the
// creation phase.
func (r *Registry) Admit(alias string, identity Identity) (*Participant, error) {
	if !r.open {
		return nil, ErrRegistrationClosed
	}
	if alias == "" {
		return nil, ErrValidation
	}
	if _, taken := r.byAlias[alias]; taken {
		return nil, ErrDuplicateAlias
	}
	p := &Participant{Alias: alias, Identity: identity}
	r.roster = append(r.roster, p)
	r.byAlias[alias] = p
	return p, nil
}

// Remove marks a participant banned. Only the creator may remove, and the
// creator cannot remove themselves. The participant's history is retained.
func (r *Registry) Remove(alias string, acting Identity) (*Participant, error) {
	if !acting.Equal(r.creator) {
		return nil, ErrNotCreator
	}
	p, ok := r.byAlias[alias]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	if p.Identity.Equal(r.creator) {
		return nil, ErrCannotRemoveCreator
	}
	p.Banned = true
	return p, nil
}

// Leave drops a participant who walks away during the creation phase. Unlike
// Remove this is self-service and erases the roster entry entirely, freeing
// the alias.
func (r *Registry) Leave(alias string, acting Identity) error {
	if !r.open {
		return ErrRegistrationClosed
	}
	p, ok := r.byAlias[alias]
	if !ok {
		return ErrParticipantNotFound
	}
	if !p.Identity.Equal(acting) {
		return ErrNotAuthorized
	}
	delete(r.byAlias, alias)
	for i, rp := range r.roster {
		if rp == p {
			r.roster = append(r.roster[:i], r.roster[i+1:]...)
			break
		}
	}
	return nil
}

// Close ends the admission phase. Further Admit calls fail with
// ErrRegistrationClosed.
func (r *Registry) Close() { r.open = false }

// List returns the roster in admission order.
func (r *Registry) List() []*Participant {
	out := make([]*Participant, len(r.roster))
	copy(out, r.roster)
	return out
}

// Active returns the non-banned roster in admission order.
func (r *Registry) Active() []*Participant {
	out := make([]*Participant, 0, len(r.roster))
	for _, p := range r.roster {
		if !p.Banned {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) Get(alias string) (*Participant, bool) {
	p, ok := r.byAlias[alias]
	return p, ok
}

func (r *Registry) FindByIdentity(identity Identity) (*Participant, bool) {
	for _, p := range r.roster {
		if p.Identity.Equal(identity) {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) Creator() Identity { return r.creator }

func (r *Registry) Size() int { return len(r.roster) }
