package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
	"github.com/tjfontaine/rx-inference-gateway/internal/stream"
)

func analyzeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Upload a prescription to a running gateway and print the streamed answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analyze(cmd, strings.TrimRight(addr, "/"), args[0])
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "gateway base URL")
	return cmd
}

func analyze(cmd *cobra.Command, addr, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, addr+"/api/analyze", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	out := cmd.OutOrStdout()
	r := stream.NewReader(resp.Body)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return errors.New("stream ended without a terminal record")
		}
		if err != nil {
			return err
		}

		switch ev.Type {
		case domain.EventTypeMetadata:
			fmt.Fprintf(cmd.ErrOrStderr(), "analyzing %s (%s, %d bytes)\n", ev.Filename, ev.FileType, ev.FileSize)
		case domain.EventTypeChunk:
			fmt.Fprint(out, ev.Content)
		case domain.EventTypeDone:
			fmt.Fprintln(out)
			return nil
		case domain.EventTypeError:
			fmt.Fprintln(out)
			return domain.NewAPIError(ev.Code, ev.Error)
		}
	}
}
