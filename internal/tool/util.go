package tool

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Utility tools: small deterministic helpers the model can call without
// touching the workspace.

// NewHashTool creates the hash tool (md5/sha1/sha256/sha512 of a string).
func NewHashTool() *BaseTool {
	params := json.RawMessage(`{
		"type": "object",
		"properties": {
			"input": {
				"type": "string",
				"description": "The text to hash"
			},
			"algorithm": {
				"type": "string",
				"description": "Hash algorithm: md5, sha1, sha256, or sha512 (default: sha256)"
			}
		},
		"required": ["input"]
	}`)

	return NewBaseTool("hash", "Computes a cryptographic hash of a string.", CategoryUtility, params,
		func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
			var args struct {
				Input     string `json:"input"`
				Algorithm string `json:"algorithm"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return nil, fmt.Errorf("invalid input: %w", err)
			}

			var sum []byte
			switch args.Algorithm {
			case "md5":
				h := md5.Sum([]byte(args.Input))
				sum = h[:]
			case "sha1":
				h := sha1.Sum([]byte(args.Input))
				sum = h[:]
			case "sha256", "":
				h := sha256.Sum256([]byte(args.Input))
				sum = h[:]
			case "sha512":
				h := sha512.Sum512([]byte(args.Input))
				sum = h[:]
			default:
				return nil, fmt.Errorf("unsupported algorithm: %s", args.Algorithm)
			}

			return &Result{Title: "hash", Output: hex.EncodeToString(sum)}, nil
		})
}

// NewBase64Tool creates the base64 tool (encode/decode).
func NewBase64Tool() *BaseTool {
	params := json.RawMessage(`{
		"type": "object",
		"properties": {
			"input": {
				"type": "string",
				"description": "The text to encode or decode"
			},
			"decode": {
				"type": "boolean",
				"description": "Decode instead of encode"
			}
		},
		"required": ["input"]
	}`)

	return NewBaseTool("base64", "Encodes or decodes base64 text.", CategoryUtility, params,
		func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
			var args struct {
				Input  string `json:"input"`
				Decode bool   `json:"decode"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return nil, fmt.Errorf("invalid input: %w", err)
			}

			if args.Decode {
				decoded, err := base64.StdEncoding.DecodeString(args.Input)
				if err != nil {
					return nil, fmt.Errorf("invalid base64: %w", err)
				}
				return &Result{Title: "base64", Output: string(decoded)}, nil
			}
			return &Result{Title: "base64", Output: base64.StdEncoding.EncodeToString([]byte(args.Input))}, nil
		})
}

// NewUUIDTool creates the uuid tool.
func NewUUIDTool() *BaseTool {
	params := json.RawMessage(`{
		"type": "object",
		"properties": {
			"count": {
				"type": "integer",
				"description": "How many UUIDs to generate (default: 1, max: 50)"
			}
		}
	}`)

	return NewBaseTool("uuid", "Generates random version-4 UUIDs.", CategoryUtility, params,
		func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
			var args struct {
				Count int `json:"count"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return nil, fmt.Errorf("invalid input: %w", err)
			}
			if args.Count <= 0 {
				args.Count = 1
			}
			if args.Count > 50 {
				args.Count = 50
			}

			out := ""
			for i := 0; i < args.Count; i++ {
				if i > 0 {
					out += "\n"
				}
				out += uuid.NewString()
			}
			return &Result{Title: "uuid", Output: out}, nil
		})
}
