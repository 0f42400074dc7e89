package api

import "context"

// CorpusFile describes one source document inside a knowledge base.
type CorpusFile struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

// CorpusInfo describes one knowledge base known to the service.
type CorpusInfo struct {
	Name      string       `json:"name"`
	CreatedAt string       `json:"created_at"`
	Files     []CorpusFile `json:"files_info"`
}

// ListCorpora fetches every knowledge base with its source documents.
func (c *Client) ListCorpora(ctx context.Context) ([]CorpusInfo, error) {
	var result struct {
		Corpora []CorpusInfo `json:"rags"`
	}
	if err := c.getJSON(ctx, "list corpora", "/api/rag/list", &result); err != nil {
		return nil, err
	}
	return result.Corpora, nil
}

// BuildResult reports the outcome of a build request. Skipped is set when
// the service found the corpus already built from identical sources.
type BuildResult struct {
	Success bool `json:"success"`
	Skipped bool `json:"skipped"`
}

// BuildCorpus indexes the given uploaded documents into a named knowledge
// base. Rebuilding an existing corpus from identical sources succeeds as
// skipped, not as an error.
func (c *Client) BuildCorpus(ctx context.Context, name string, files []string) (*BuildResult, error) {
	req := struct {
		Files []string `json:"files"`
		Name  string   `json:"rag_name"`
	}{Files: files, Name: name}

	var result BuildResult
	if err := c.postJSON(ctx, "build corpus", "/api/rag/build", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RenameCorpus renames a knowledge base.
func (c *Client) RenameCorpus(ctx context.Context, oldName, newName string) error {
	req := struct {
		OldName string `json:"old_name"`
		NewName string `json:"new_name"`
	}{OldName: oldName, NewName: newName}
	return c.postJSON(ctx, "rename corpus", "/api/rag/rename", req, nil)
}

// DeleteCorpus removes a knowledge base and its index.
func (c *Client) DeleteCorpus(ctx context.Context, name string) error {
	req := struct {
		Name string `json:"rag_name"`
	}{Name: name}
	return c.postJSON(ctx, "delete corpus", "/api/rag/delete", req, nil)
}
