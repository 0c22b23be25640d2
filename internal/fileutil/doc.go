// Package fileutil holds the path filtering rules shared by every enumeration
// backend.
//
// # Glob semantics
//
// Include and exclude patterns use doublestar syntax (`*`, `?`, `[...]`,
// `{a,b}` and `**`). A pattern without a slash is matched against the file's
// base name, so "*.iso" matches at any depth. A pattern containing a slash is
// matched against the slash-separated path relative to the scan root, so
// "photos/**/*.jpg" only matches below photos/.
//
// A file is accepted when it matches at least one include pattern (or no
// include patterns are configured) and matches no exclude pattern.
//
// # Hidden entries
//
// Names starting with "." are hidden. Hidden directories are pruned and
// hidden files rejected unless Filters.IncludeHidden is set. The scan root is
// never treated as hidden.
//
// # Depth
//
// Depth counts path elements below the root: a file directly inside the root
// has depth 1. MaxDepth 0 means unlimited.
package fileutil
