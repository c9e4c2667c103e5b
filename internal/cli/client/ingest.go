package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

// IngestRequest is the wire request for indexing one document. Text
// payloads travel in Content; anything that is not valid UTF-8 must use
// ContentBase64, because a JSON string silently corrupts raw bytes.
type IngestRequest struct {
	Name          string `json:"name"`
	Content       string `json:"content,omitempty"`
	ContentBase64 string `json:"content_base64,omitempty"`
}

// IngestResult is the wire response for one indexed document.
type IngestResult struct {
	DocumentHash  string `json:"document_hash"`
	DocumentName  string `json:"document_name"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

// IngestReport summarizes a multi-file ingest run.
type IngestReport struct {
	Results   []IngestFileResult `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Total     int                `json:"total"`
}

// IngestFileResult is the per-file outcome within an IngestReport.
type IngestFileResult struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Hash   string `json:"hash,omitempty"`
	Chunks int    `json:"chunks,omitempty"`
	Error  string `json:"error,omitempty"`
}

var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".pdf": true,
}

func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Index documents",
		Long: `Reads files and sends them to the daemon for chunking and indexing.

Directories are walked recursively for supported files (.txt, .md, .pdf
with an extracted text layer). Re-ingesting unchanged content is a no-op;
changed content is indexed under a new hash, and the old hash stays
until purged.

Examples:
  # Index a single file
  burrow ingest notes.md

  # Index several files and a directory
  burrow ingest README.md docs/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIngest(cmd, args, outputJSON)
		},
	}

	return cmd
}

func runIngest(cmd *cobra.Command, paths []string, outputJSON bool) error {
	files, err := gatherFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported files found (.txt, .md, .pdf)")
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	report := IngestReport{
		Results: make([]IngestFileResult, 0, len(files)),
		Total:   len(files),
	}

	for _, path := range files {
		result, err := ingestFile(api, path)
		if err != nil {
			report.Results = append(report.Results, IngestFileResult{
				Path:   path,
				Status: "failed",
				Error:  err.Error(),
			})
			report.Failed++
			if !outputJSON {
				fmt.Printf("Failed %s: %v\n", path, err)
			}
			continue
		}

		report.Results = append(report.Results, IngestFileResult{
			Path:   path,
			Status: "indexed",
			Hash:   result.DocumentHash,
			Chunks: result.ChunksIndexed,
		})
		report.Succeeded++
		if !outputJSON {
			fmt.Printf("Indexed %s (%d chunks) hash=%s\n", path, result.ChunksIndexed, shortHash(result.DocumentHash))
		}
	}

	if outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	}

	if report.Failed > 0 {
		return fmt.Errorf("ingest completed with %d failures", report.Failed)
	}
	return nil
}

func ingestFile(api *APIClient, path string) (*IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	req := IngestRequest{Name: filepath.Base(path)}
	if utf8.Valid(data) {
		req.Content = string(data)
	} else {
		req.ContentBase64 = base64.StdEncoding.EncodeToString(data)
	}

	resp, err := api.Post("/v1/documents", req)
	if err != nil {
		return nil, err
	}

	var result IngestResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// gatherFiles expands the path arguments into a list of ingestible
// files. Directories are walked recursively with hidden entries
// skipped; a file named explicitly must carry a supported extension.
func gatherFiles(paths []string) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if !info.IsDir() {
			if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil, fmt.Errorf("unsupported file type: %s (supported: .txt, .md, .pdf)", path)
			}
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && p != path {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if supportedExtensions[strings.ToLower(filepath.Ext(p))] {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	}

	return files, nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
