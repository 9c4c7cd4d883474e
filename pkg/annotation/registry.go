package annotation

// UnknownCategory is the name returned for ids that were never registered
const UnknownCategory = "unknown"

func CategoryKey(category, subcategory string) string {
	return category + "/" + subcategory
}

// Registry assigns sequential ids to "category/subcategory" names, in the order that they are first seen.
// Ids are never reassigned or removed.
// A Registry is owned by one session. Two sessions over different annotation sets may assign
// different ids to the same name.
type Registry struct {
	ids   map[string]int
	names []string
}

func NewRegistry() *Registry {
	return &Registry{
		ids: map[string]int{},
	}
}

// Register returns the id of category/subcategory, assigning the next id if it is new
func (r *Registry) Register(category, subcategory string) int {
	key := CategoryKey(category, subcategory)
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := len(r.names)
	r.ids[key] = id
	r.names = append(r.names, key)
	return id
}

func (r *Registry) Lookup(category, subcategory string) (int, bool) {
	id, ok := r.ids[CategoryKey(category, subcategory)]
	return id, ok
}

// NameOf returns the "category/subcategory" name of id, or UnknownCategory
func (r *Registry) NameOf(id int) string {
	if id < 0 || id >= len(r.names) {
		return UnknownCategory
	}
	return r.names[id]
}

// Names returns all names, indexed by id
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) Len() int {
	return len(r.names)
}
