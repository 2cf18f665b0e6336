// Package mcpserver exposes transcript extraction, value validation and the
// field catalog as Model Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/extract"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/pipeline"
)

// Processor runs the pipeline for one transcript
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*model.Report, error)
}

// Validator validates one field value
type Validator interface {
	Validate(fieldID model.FieldID, raw string, confidence *float64) model.ValidationResult
}

// Catalog lists field definitions
type Catalog interface {
	All() []model.FieldDefinition
	BySection(sectionID string) []model.FieldDefinition
	Lookup(id model.FieldID) (model.FieldDefinition, bool)
}

// Config holds the MCP server's collaborators
type Config struct {
	Processor Processor
	Validator Validator
	Catalog   Catalog
	Version   string
	Log       *zap.Logger
}

// NewServer creates an MCP server with the scribe tools registered
func NewServer(cfg Config) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	s := server.NewMCPServer(
		"vitalscribe",
		ver,
		server.WithToolCapabilities(false),
	)

	registerExtractTool(s, cfg.Processor, log)
	registerValidateTool(s, cfg.Validator)
	registerFieldsTool(s, cfg.Catalog)

	return s
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerExtractTool(s *server.MCPServer, p Processor, log *zap.Logger) {
	tool := mcp.NewTool("scribe_extract",
		mcp.WithDescription("Extract nursing assessment field values from a clinical conversation transcript (English or Cantonese). Returns validated, confidence-scored values and a quality score. Values are stored as AI-filled for the assessment."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("assessment_id",
			mcp.Required(),
			mcp.Description("Assessment the extracted values belong to"),
		),
		mcp.WithString("transcript",
			mcp.Required(),
			mcp.Description("Transcript text of the nurse-patient conversation"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		assessmentID, err := req.RequireString("assessment_id")
		if err != nil {
			return mcp.NewToolResultError("assessment_id is required"), nil
		}
		transcript, err := req.RequireString("transcript")
		if err != nil {
			return mcp.NewToolResultError("transcript is required"), nil
		}

		report, err := p.Process(ctx, pipeline.Request{
			AssessmentID: assessmentID,
			Transcript:   transcript,
			Source:       "mcp",
		})
		if errors.Is(err, pipeline.ErrMissingAssessment) || errors.Is(err, extract.ErrEmptyTranscript) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err != nil {
			log.Error("MCP extraction failed", zap.String("assessment_id", assessmentID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %v", err)), nil
		}
		return jsonResult(report)
	})
}

func registerValidateTool(s *server.MCPServer, v Validator) {
	tool := mcp.NewTool("scribe_validate",
		mcp.WithDescription("Validate and normalize one value for a nursing assessment field: numeric ranges, option matching, phone formats. Returns errors, warnings and the normalized value."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("field_id",
			mcp.Required(),
			mcp.Description("Catalog field id (e.g., 'temperature', 'morse_ambulatory_aid')"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("Raw value to validate"),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Optional extraction confidence between 0 and 1; below 0.5 adds a warning"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fieldID, err := req.RequireString("field_id")
		if err != nil {
			return mcp.NewToolResultError("field_id is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError("value is required"), nil
		}

		var confidence *float64
		if c, err := req.RequireFloat("confidence"); err == nil {
			confidence = &c
		}
		return jsonResult(v.Validate(model.FieldID(fieldID), value, confidence))
	})
}

func registerFieldsTool(s *server.MCPServer, cat Catalog) {
	tool := mcp.NewTool("scribe_fields",
		mcp.WithDescription("List extractable nursing assessment fields with their type, options, unit and synonyms. Filter by section or fetch a single field."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("section",
			mcp.Description("Only fields of this section (e.g., 'vital_signs', 'morse_fall_scale')"),
		),
		mcp.WithString("field_id",
			mcp.Description("Return only this field"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if id, err := req.RequireString("field_id"); err == nil && id != "" {
			def, ok := cat.Lookup(model.FieldID(id))
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("%v: %s", model.ErrUnknownField, id)), nil
			}
			return jsonResult(def)
		}

		defs := cat.All()
		if section, err := req.RequireString("section"); err == nil && section != "" {
			defs = cat.BySection(section)
		}
		if defs == nil {
			defs = []model.FieldDefinition{}
		}
		return jsonResult(defs)
	})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
