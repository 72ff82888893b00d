package corpus

// Library binds a fixed manifest to a loader and a cache. It is the single place
// the rest of the application asks for the corpus.
type Library struct {
	manifest Manifest
	loader   *Loader
	cache    *Cache
}

// NewLibrary creates a library for manifest.
func NewLibrary(manifest Manifest, loader *Loader, cache *Cache) *Library {
	return &Library{manifest: NewManifest(manifest...), loader: loader, cache: cache}
}

// Corpus returns the cached corpus, loading it on first use.
func (l *Library) Corpus() *Corpus {
	return l.cache.GetOrLoad(l.manifest, l.loader.Load)
}

// Reload drops the cached corpus and loads it again from disk.
func (l *Library) Reload() *Corpus {
	l.Invalidate()
	return l.Corpus()
}

// Invalidate drops the cached corpus; the next Corpus call reloads it.
func (l *Library) Invalidate() {
	l.cache.Invalidate(l.manifest.Key())
}

// Manifest returns a copy of the library manifest.
func (l *Library) Manifest() Manifest {
	return NewManifest(l.manifest...)
}
