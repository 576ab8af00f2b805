// Package main implements the ragctl CLI for manual operations against the ragd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the ragd HTTP server
	serverURL string
	// documentID is the identifier used by the add command
	documentID string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "CLI for ragd HTTP server operations",
	Long: `ragctl is a command-line interface for interacting with the ragd HTTP server.
It provides commands for asking questions, adding documents and checking
server status.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "ragd server URL")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(chatCmd)

	addCmd.Flags().StringVar(&documentID, "id", "", "document identifier (required)")
	_ = addCmd.MarkFlagRequired("id")
}

// askCmd sends a single question and prints the answer
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against the indexed documents",
	Long: `Ask a question against the ragd server and print the answer.

Multiple arguments are joined with spaces before being sent, so the
question does not need to be quoted.

Examples:
  # Ask a question
  ragctl ask "What is the capital of France?"

  # Multiple words without quoting
  ragctl ask what is a goroutine

  # Use a different server
  ragctl ask --server http://localhost:9090 "What is Go?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// addCmd adds a document from a file or stdin
var addCmd = &cobra.Command{
	Use:   "add [file]",
	Short: "Add a document from a file or stdin",
	Long: `Add a document to the ragd server from a file or stdin.

Examples:
  # Add a file
  ragctl add --id go-intro docs/go-intro.txt

  # Add from stdin
  cat notes.txt | ragctl add --id notes -

  # Use a different server
  ragctl add --server http://localhost:9090 --id notes notes.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

// statusCmd reports document count and engine settings
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ragd system status",
	Long: `Show the ragd server's system status: document count, completion
availability and retrieval settings.

Examples:
  # Show status
  ragctl status

  # Show status on a different server
  ragctl status --server http://localhost:9090`,
	RunE: runStatus,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check ragd server health",
	Long: `Check the health status of the ragd HTTP server.

Examples:
  # Check health
  ragctl health

  # Check health on a different server
  ragctl health --server http://localhost:9090`,
	RunE: runHealth,
}

// AskRequest matches internal/http/server.go AskRequest
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse matches internal/http/server.go AskResponse
type AskResponse struct {
	Answer string `json:"answer"`
}

// AddDocumentRequest matches internal/http/server.go AddDocumentRequest
type AddDocumentRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// AddDocumentResponse matches internal/http/server.go AddDocumentResponse
type AddDocumentResponse struct {
	ID string `json:"id"`
}

// StatusResponse matches internal/engine/engine.go SystemInfo
type StatusResponse struct {
	DocumentCount       int64   `json:"document_count"`
	CompletionAvailable bool    `json:"completion_available"`
	TopK                int     `json:"top_k"`
	SimilarityThreshold float32 `json:"similarity_threshold"`
}

// HealthResponse matches internal/http/server.go HealthResponse
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// runAsk handles the ask command
func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question cannot be empty")
	}

	answer, err := postAsk(question)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}

// postAsk sends one question to the server and returns the answer. The chat
// command reuses it for every transcript entry.
func postAsk(question string) (string, error) {
	reqJSON, err := json.Marshal(AskRequest{Question: question})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/ask", serverURL)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var askResp AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&askResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return askResp.Answer, nil
}

// runAdd handles the add command
func runAdd(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error

	// Read input from file or stdin
	if len(args) == 0 || args[0] == "-" {
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

	if len(content) == 0 {
		return fmt.Errorf("no content to add")
	}

	reqBody := AddDocumentRequest{
		ID:      documentID,
		Content: string(content),
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/documents", serverURL)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var addResp AddDocumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&addResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Added document %q\n", addResp.ID)
	return nil
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/status", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var statusResp StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	available := "No"
	if statusResp.CompletionAvailable {
		available = "Yes"
	}

	fmt.Println("RAG System Status:")
	fmt.Printf("- Documents in database: %d\n", statusResp.DocumentCount)
	fmt.Printf("- LLM available: %s\n", available)
	fmt.Printf("- Top-K retrieval: %d\n", statusResp.TopK)
	fmt.Printf("- Similarity threshold: %.2f\n", statusResp.SimilarityThreshold)

	return nil
}

// runHealth handles the health command
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

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server URL: %s\n", serverURL)

	return nil
}
