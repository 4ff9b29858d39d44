// Package main implements the paddock CLI for manual operations against
// the paddockd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the paddockd HTTP server
	serverURL string
	// sessionID scopes conversation state on the server
	sessionID string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "paddock",
	Short: "CLI for paddockd HTTP server operations",
	Long: `paddock is a command-line interface for interacting with the paddockd
HTTP server. It provides commands for asking questions about F1
regulations and race results, uploading documents, resetting sessions,
and checking server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "paddockd server URL")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "session identifier")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(healthCmd)
}

// askCmd submits a question and prints the full answer with citations.
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and show citations and the guardrail verdict",
	Long: `Ask a question about F1 regulations or race results.

Examples:
  # Ask about the current regulations
  paddock ask "What is the minimum car weight?"

  # Keep a conversation going in a named session
  paddock ask --session reviews "What penalties apply to unsafe releases?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// chatCmd submits a question and prints the answer text only.
var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask a question and print only the answer text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

// uploadCmd uploads a pre-chunked passages file.
var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload pre-chunked passages for this session",
	Long: `Upload a JSON file of pre-chunked passages. Subsequent questions in
this session are answered from the uploaded document instead of the
base regulations.

The file holds an array of passages:
  [{"text": "...", "metadata": {"source": "my_doc.pdf", "rule_id": "3.1"}}]

Examples:
  paddock upload passages.json
  cat passages.json | paddock upload -`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

// resetCmd clears the session.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear this session's transcript and uploaded document",
	RunE:  runReset,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check paddockd server health",
	RunE:  runHealth,
}

// Request/response bodies match internal/http types.

type askRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type citation struct {
	ID     string  `json:"id"`
	Source string  `json:"source,omitempty"`
	RuleID string  `json:"rule_id,omitempty"`
	Score  float32 `json:"score"`
}

type verdictBody struct {
	Grounded       bool    `json:"grounded"`
	Score          float64 `json:"score"`
	CitationsValid bool    `json:"citations_valid"`
	Flagged        bool    `json:"flagged"`
	Reason         string  `json:"reason,omitempty"`
}

type askResponse struct {
	Answer     string      `json:"answer"`
	Intent     string      `json:"intent"`
	Collection string      `json:"collection,omitempty"`
	Citations  []citation  `json:"citations,omitempty"`
	Verdict    verdictBody `json:"verdict"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

type uploadPassage struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type uploadRequest struct {
	SessionID string          `json:"session_id"`
	Document  string          `json:"document,omitempty"`
	Passages  []uploadPassage `json:"passages"`
}

type uploadResponse struct {
	CollectionID string `json:"collection_id"`
	Passages     int    `json:"passages"`
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	var resp askResponse
	req := askRequest{SessionID: sessionID, Query: strings.Join(args, " ")}
	if err := postJSON("/api/v1/ask", req, &resp); err != nil {
		return err
	}

	fmt.Println(resp.Answer)

	if len(resp.Citations) > 0 {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Citations:")
		for _, c := range resp.Citations {
			ref := c.Source
			if c.RuleID != "" {
				ref = fmt.Sprintf("%s, %s", ref, c.RuleID)
			}
			fmt.Fprintf(os.Stderr, "  [%s] score=%.2f\n", ref, c.Score)
		}
	}
	if resp.Verdict.Flagged {
		fmt.Fprintf(os.Stderr, "\n[paddock] Low-confidence answer: %s\n", resp.Verdict.Reason)
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	var resp chatResponse
	req := askRequest{SessionID: sessionID, Query: strings.Join(args, " ")}
	if err := postJSON("/api/v1/chat", req, &resp); err != nil {
		return err
	}
	fmt.Println(resp.Answer)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error

	if args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}

	var passages []uploadPassage
	if err := json.Unmarshal(content, &passages); err != nil {
		return fmt.Errorf("failed to parse passages file: %w", err)
	}
	if len(passages) == 0 {
		return fmt.Errorf("no passages to upload")
	}

	docName := args[0]
	if docName == "-" {
		docName = "stdin"
	}

	var resp uploadResponse
	req := uploadRequest{SessionID: sessionID, Document: filepath.Base(docName), Passages: passages}
	if err := postJSON("/api/v1/upload", req, &resp); err != nil {
		return err
	}

	fmt.Printf("Uploaded %d passages to collection %s\n", resp.Passages, resp.CollectionID)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	var resp map[string]string
	if err := postJSON("/api/v1/reset", resetRequest{SessionID: sessionID}, &resp); err != nil {
		return err
	}
	fmt.Printf("Session %s reset\n", sessionID)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var healthResp healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server URL: %s\n", serverURL)
	return nil
}

// postJSON posts a request body and decodes the JSON response into out.
func postJSON(path string, body, out any) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := serverURL + path
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 60 * time.Second,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
