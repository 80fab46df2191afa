package topology

import "fmt"

// Registry keeps every object in registration order.
type Registry struct {
	objects []Object
	index   map[string]Object
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]Object)}
}

func key(scope, typ, name string) string {
	return scope + "/" + typ + "/" + name
}

func (r *Registry) Register(obj Object) error {
	k := key(obj.RegistryInfo())
	if _, ok := r.index[k]; ok {
		return fmt.Errorf("object %s already registered", k)
	}
	r.index[k] = obj
	r.objects = append(r.objects, obj)
	return nil
}

func (r *Registry) Get(scope, typ, name string) (Object, bool) {
	obj, ok := r.index[key(scope, typ, name)]
	return obj, ok
}

func (r *Registry) Network(scope, name string) (*Network, bool) {
	obj, ok := r.Get(scope, TypeNetwork, name)
	if !ok {
		return nil, false
	}
	net, ok := obj.(*Network)
	return net, ok
}

// All returns the registered objects in registration order.
func (r *Registry) All() []Object {
	return r.objects
}
