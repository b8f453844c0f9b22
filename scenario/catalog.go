package scenario

// DefaultRegistry builds the full scenario catalogue. The order here is the
// catalogue order every selection preserves.
func DefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	for _, s := range []Scenario{
		&Housekeeper{},
		&Jobs{},
		&MaxStorageReject{},
		&QueryRetrieve{},
		&StorageCompression{},
		&Worklists{},
	} {
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
