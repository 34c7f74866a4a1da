// Package imagefetch loads the images behind visuals and turns them into
// self-contained data URLs.
//
// Remote fetches are retried with a bounded backoff (1s, 2s, 4s by default)
// before failing with ErrImageLoad, so a flaky image host degrades to a
// placeholder instead of a broken layout. Tracker keeps the loading state per
// visual and discards results that arrive for visuals removed in the meantime.
package imagefetch
