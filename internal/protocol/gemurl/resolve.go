package gemurl

import "strings"

// CombineRelative merges a relative reference into base. An absolute path
// replaces the base path; any other path is appended to the base directory
// (the base path truncated after its last "/"). An empty path keeps the base
// path. The query always comes from rel, or is cleared.
func CombineRelative(base URL, rel Reference) URL {
	var path string
	switch {
	case strings.HasPrefix(rel.Path, "/"):
		path = rel.Path
	case rel.Path == "":
		path = base.Path
	default:
		dir := base.Path[:strings.LastIndex(base.Path, "/")+1]
		path = dir + rel.Path
	}
	return URL{
		Scheme:   base.Scheme,
		Host:     base.Host,
		Port:     base.Port,
		Path:     removeDotSegments(path),
		Query:    rel.Query,
		HasQuery: rel.HasQuery,
	}
}

// Resolve turns ref into an absolute URL, using base only when ref has no
// host and no foreign scheme. Opaque references such as mailto: keep their
// own scheme and path.
func Resolve(base URL, ref Reference) URL {
	switch {
	case ref.IsAbsolute():
		return ref.URL()
	case !ref.IsGemini():
		return URL{Scheme: ref.Scheme, Path: ref.Path, Query: ref.Query, HasQuery: ref.HasQuery}
	}
	return CombineRelative(base, ref)
}

// removeDotSegments drops "." and ".." path segments. ".." never climbs
// above the root.
func removeDotSegments(path string) string {
	if !strings.Contains(path, ".") {
		return path
	}
	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		last := i == len(segments)-1
		switch seg {
		case ".":
			if last {
				out = append(out, "")
			}
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, seg)
		}
	}
	joined := strings.Join(out, "/")
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}
