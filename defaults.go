package variantcache

// coalesce returns def when v is the zero value of T, otherwise v.
// Interface arguments must hold comparable dynamic types.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
