package service

import (
	"sort"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
)

var _ output.MethodRegistry = (*MethodRegistryImpl)(nil)

type MethodRegistryImpl struct {
	methods map[entity.Method]output.ActionMethod
}

func NewMethodRegistry(methods ...output.ActionMethod) *MethodRegistryImpl {
	r := &MethodRegistryImpl{
		methods: make(map[entity.Method]output.ActionMethod),
	}
	for _, m := range methods {
		r.Register(m)
	}
	return r
}

// Register adds m, replacing any method registered under the same name.
func (r *MethodRegistryImpl) Register(m output.ActionMethod) {
	r.methods[m.Name()] = m
}

func (r *MethodRegistryImpl) Get(name entity.Method) (output.ActionMethod, bool) {
	m, ok := r.methods[name]
	return m, ok
}

func (r *MethodRegistryImpl) Names() []entity.Method {
	result := make([]entity.Method, 0, len(r.methods))
	for name := range r.methods {
		result = append(result, name)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
