// Package nscache is a namespaced, store-agnostic cache access layer with a
// lazily established, self-healing connection.
//
// Components:
//   - ConnManager: owns one store handle. The first operation connects; all
//     concurrent callers share that single attempt cycle (5 tries, 2s/4s/8s/16s
//     between them by default) and observe the same outcome.
//   - Client: byte-level Get/Set/Remove/RemoveByPattern/Touch/TTL under a key
//     namespace.
//   - Cache[V]: typed view of a Client through a codec.Codec[V] (JSON default).
//   - near.Cache: optional in-process layer (ristretto, bigcache).
//
// Keys:
//
//	<namespace><key>   e.g. "deviceservice:device:42:reading:7"
//
// Cache-aside:
//
//	r, ok, err := readings.Get(ctx, key)
//	if err != nil && nscache.IsUnavailable(err) { /* fall back to DB */ }
//	if !ok {
//	    r = loadFromDB()
//	    _ = readings.Set(ctx, key, r, nscache.Minutes(10))
//	}
package nscache
