package corpus

// ParseDocument builds a record from the raw content of the file at path.
// A frontmatter block that is unclosed or not valid YAML is reported as a
// MalformedFrontmatter load error; the record is still returned with empty
// frontmatter. An unclosed block leaves the whole content as the body.
func ParseDocument(path string, content []byte) (*DocumentRecord, *LoadError) {
	block, body, state := SplitFrontmatter(string(content))

	fm := Frontmatter{}
	var loadErr *LoadError

	switch state {
	case FrontmatterUnclosed:
		loadErr = &LoadError{
			Kind:    MalformedFrontmatter,
			Path:    path,
			Message: "frontmatter is missing its closing '---' delimiter",
		}
	case FrontmatterClosed:
		parsed, err := ParseFrontmatter(block)
		if err != nil {
			loadErr = &LoadError{
				Kind:    MalformedFrontmatter,
				Path:    path,
				Message: err.Error(),
			}
		} else {
			fm = parsed
		}
	}

	return &DocumentRecord{
		Path:          path,
		Kind:          Classify(fm),
		Frontmatter:   fm,
		Body:          body,
		OutboundLinks: ExtractLinks([]byte(body)),
	}, loadErr
}
