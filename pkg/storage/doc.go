// Package storage persists order documents, one JSON object per order key.
//
// Two backends implement Backend: LocalBackend writes files into a directory
// through a temp file and rename, ObjectBackend writes objects to an S3
// compatible bucket with a single PutObject. Both report content hashes as
// hex MD5 so the sync coordinator can compare fresh content with what is
// already stored.
//
//	backend, err := storage.New(ctx, cfg.Storage, log)
//	if err != nil {
//	    return err
//	}
//	backend = storage.WithCache(backend, hashCache, cfg.Cache.TTL, log)
//
// Copy moves documents between any two backends and skips keys that are
// already identical at the destination.
package storage
