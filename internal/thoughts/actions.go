// Package thoughts declares the operations exposed over every surface.
package thoughts

import (
	"context"
	"errors"
	"fmt"

	"github.com/aupadhyay/thoughts/internal/action"
	"github.com/aupadhyay/thoughts/internal/importer"
	"github.com/aupadhyay/thoughts/internal/storage"
	"github.com/aupadhyay/thoughts/internal/surface"
)

const (
	APITitle   = "Thoughts API"
	APIVersion = "1.0.0"
)

// APIInfo describes the generated API document.
func APIInfo(serverURL string) surface.Info {
	info := surface.Info{
		Title:       APITitle,
		Version:     APIVersion,
		Description: "Quick-capture thoughts with optional context",
	}
	if serverURL != "" {
		info.Servers = []string{serverURL}
	}
	return info
}

// Store is the subset of storage.Store the operations use.
type Store interface {
	Create(ctx context.Context, content string, metadata *string) (storage.Thought, error)
	ListAll(ctx context.Context, search string) ([]storage.Thought, error)
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
	Path() string
}

// Importer loads thoughts from a foreign database.
type Importer interface {
	ImportFrom(ctx context.Context, path string) (importer.Report, error)
}

// Deps are the collaborators the operations act on.
type Deps struct {
	Store    Store
	Importer Importer
}

type CreateThoughtInput struct {
	Content  string    `json:"content"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

type GetThoughtsInput struct {
	Search string `json:"search,omitempty"`
}

type ImportDatabaseInput struct {
	FilePath string `json:"filePath"`
}

type ImportDatabaseOutput struct {
	ImportedCount int                    `json:"importedCount"`
	Tables        []importer.TableResult `json:"tables"`
}

type DeleteAllOutput struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

type DatabasePathOutput struct {
	Path *string `json:"path"`
}

type CountOutput struct {
	Count int64 `json:"count"`
}

// Actions holds the typed handles of every registered operation.
type Actions struct {
	CreateThought     *action.Action[CreateThoughtInput, Thought]
	GetThoughts       *action.Action[GetThoughtsInput, []Thought]
	ImportDatabase    *action.Action[ImportDatabaseInput, ImportDatabaseOutput]
	DeleteAllThoughts *action.Action[struct{}, DeleteAllOutput]
	GetDatabasePath   *action.Action[struct{}, DatabasePathOutput]
	GetThoughtCount   *action.Action[struct{}, CountOutput]
}

var tableResultSchema = action.Object(
	action.Prop("table", action.String()),
	action.Prop("contentColumn", action.String()),
	action.Prop("timestampColumn", action.String()),
	action.Prop("imported", action.Integer().Rule("min=0")),
	action.Prop("skipped", action.Boolean()),
	action.OptionalProp("error", action.String()),
)

// Register declares every operation on reg in a fixed order.
func Register(reg *action.Registry, deps Deps) (*Actions, error) {
	if deps.Store == nil {
		return nil, errors.New("thoughts: store is required")
	}
	var (
		a   Actions
		err error
	)

	a.CreateThought, err = action.Register(reg, "createThought",
		"Capture a new thought with optional context metadata",
		action.Object(
			action.Prop("content", action.String().Rule("min=1").Describe("The thought text")),
			action.OptionalProp("metadata", metadataSchema.OrNull()),
		),
		thoughtSchema,
		func(ctx context.Context, in CreateThoughtInput) (Thought, error) {
			meta, err := encodeMetadata(in.Metadata)
			if err != nil {
				return Thought{}, fmt.Errorf("encoding metadata: %w", err)
			}
			rec, err := deps.Store.Create(ctx, in.Content, meta)
			if err != nil {
				return Thought{}, err
			}
			return fromRecord(rec), nil
		})
	if err != nil {
		return nil, err
	}

	a.GetThoughts, err = action.Register(reg, "getThoughts",
		"List thoughts newest first, optionally filtered by a substring",
		action.Object(action.OptionalProp("search", action.String().Describe("Only return thoughts containing this text"))),
		action.Array(thoughtSchema),
		func(ctx context.Context, in GetThoughtsInput) ([]Thought, error) {
			recs, err := deps.Store.ListAll(ctx, in.Search)
			if err != nil {
				return nil, err
			}
			out := make([]Thought, 0, len(recs))
			for _, r := range recs {
				out = append(out, fromRecord(r))
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	a.ImportDatabase, err = action.Register(reg, "importDatabase",
		"Import thoughts from another SQLite database by guessing its content and timestamp columns",
		action.Object(action.Prop("filePath", action.String().Rule("min=1").Describe("Path to the source database file"))),
		action.Object(
			action.Prop("importedCount", action.Integer().Rule("min=0")),
			action.Prop("tables", action.Array(tableResultSchema)),
		),
		func(ctx context.Context, in ImportDatabaseInput) (ImportDatabaseOutput, error) {
			if deps.Importer == nil {
				return ImportDatabaseOutput{}, errors.New("import is not configured")
			}
			report, err := deps.Importer.ImportFrom(ctx, in.FilePath)
			if err != nil {
				return ImportDatabaseOutput{}, err
			}
			tables := report.Tables
			if tables == nil {
				tables = []importer.TableResult{}
			}
			return ImportDatabaseOutput{ImportedCount: report.Imported, Tables: tables}, nil
		})
	if err != nil {
		return nil, err
	}

	a.DeleteAllThoughts, err = action.Register(reg, "deleteAllThoughts",
		"Delete every stored thought",
		action.Object(),
		action.Object(
			action.Prop("success", action.Boolean()),
			action.Prop("deleted", action.Integer().Rule("min=0")),
		),
		func(ctx context.Context, _ struct{}) (DeleteAllOutput, error) {
			n, err := deps.Store.DeleteAll(ctx)
			if err != nil {
				return DeleteAllOutput{}, err
			}
			return DeleteAllOutput{Success: true, Deleted: n}, nil
		})
	if err != nil {
		return nil, err
	}

	a.GetDatabasePath, err = action.Register(reg, "getDatabasePath",
		"Report where the database file lives; null for an in-memory store",
		action.Object(),
		action.Object(action.Prop("path", action.String().OrNull())),
		func(context.Context, struct{}) (DatabasePathOutput, error) {
			var out DatabasePathOutput
			if p := deps.Store.Path(); p != "" {
				out.Path = &p
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	a.GetThoughtCount, err = action.Register(reg, "getThoughtCount",
		"Count stored thoughts",
		action.Object(),
		action.Object(action.Prop("count", action.Integer().Rule("min=0"))),
		func(ctx context.Context, _ struct{}) (CountOutput, error) {
			n, err := deps.Store.Count(ctx)
			if err != nil {
				return CountOutput{}, err
			}
			return CountOutput{Count: n}, nil
		})
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// NewRegistry builds and seals a registry holding every operation.
func NewRegistry(deps Deps) (*action.Registry, *Actions, error) {
	reg := action.NewRegistry()
	a, err := Register(reg, deps)
	if err != nil {
		return nil, nil, err
	}
	reg.Seal()
	return reg, a, nil
}
