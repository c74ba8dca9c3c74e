package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akolanti/GoIngest/internal/app"
	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/ingest"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type batchLine struct {
	File       string `json:"file"`
	DocumentId string `json:"document_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

func ingestCmd() *cobra.Command {
	var collectionId, strategyId, cleansingId, metadata string
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Ingest files into a collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var meta map[string]any
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
					return fmt.Errorf("--metadata must be a JSON object: %w", err)
				}
			}
			reqs := make([]ingest.IngestRequest, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				reqs = append(reqs, ingest.IngestRequest{
					CollectionId:       collectionId,
					Filename:           filepath.Base(path),
					ContentType:        commonModels.MediaTypeForExtension(filepath.Ext(path)),
					Data:               data,
					ChunkingStrategyId: strategyId,
					CleansingConfigId:  cleansingId,
					Metadata:           meta,
				})
			}

			return withApp(cmd.Context(), func(a *app.App) error {
				results := a.Orchestrator.IngestBatch(cmd.Context(), reqs)
				lines := make([]batchLine, len(results))
				failed := 0
				for i, r := range results {
					lines[i] = batchLine{File: args[i], DocumentId: r.Document.Id, Status: string(r.Document.ProcessingStatus)}
					if r.Err != nil {
						lines[i].Error = ragErrors.Describe(r.Err)
						failed++
					}
				}
				if err := printJSON(lines); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d documents failed", failed, len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&collectionId, "collection", "c", "", "target collection id")
	cmd.Flags().StringVar(&strategyId, "chunking-strategy", "", "chunking strategy id overriding the collection default")
	cmd.Flags().StringVar(&cleansingId, "cleansing-config", "", "cleansing config id overriding the collection default")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON object stored on every document")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func reprocessCmd() *cobra.Command {
	var req ingest.ReprocessRequest
	cmd := &cobra.Command{
		Use:   "reprocess DOCUMENT_ID",
		Short: "Rechunk and re-embed a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				doc, err := a.Orchestrator.Reprocess(cmd.Context(), args[0], req)
				if err != nil {
					return describe(err)
				}
				return printJSON(doc)
			})
		},
	}
	cmd.Flags().StringVarP(&req.CollectionId, "collection", "c", "", "move the document to this collection")
	cmd.Flags().StringVar(&req.ChunkingStrategyId, "chunking-strategy", "", "chunking strategy id")
	cmd.Flags().StringVar(&req.CleansingConfigId, "cleansing-config", "", "cleansing config id")
	return cmd
}

func searchCmd() *cobra.Command {
	var req ingest.SearchRequest
	var filter string
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Similarity search over one or every collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = args[0]
			if filter != "" {
				if err := json.Unmarshal([]byte(filter), &req.Filter); err != nil {
					return fmt.Errorf("--filter must be a JSON object: %w", err)
				}
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				results, err := a.Orchestrator.Search(cmd.Context(), req)
				if err != nil {
					return describe(err)
				}
				return printJSON(results)
			})
		},
	}
	cmd.Flags().StringVarP(&req.CollectionId, "collection", "c", "", "collection id, all active collections when empty")
	cmd.Flags().IntVarP(&req.TopK, "top-k", "k", 5, "number of results")
	cmd.Flags().StringVar(&filter, "filter", "", "JSON object of metadata values that must match")
	return cmd
}

func collectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage collections",
	}

	var coll docModel.Collection
	// the catalog is seeded from the config file, so the created entry is printed for it
	create := &cobra.Command{
		Use:   "create ID",
		Short: "Create a collection in its vector store and print its config entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coll.Id = args[0]
			return withApp(cmd.Context(), func(a *app.App) error {
				created, err := a.Orchestrator.CreateCollection(cmd.Context(), coll)
				if err != nil {
					return describe(err)
				}
				out, err := yaml.Marshal(map[string][]docModel.Collection{"collections": {created}})
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(out)
				return err
			})
		},
	}
	create.Flags().StringVar(&coll.Name, "name", "", "backend collection name, defaults to the id")
	create.Flags().StringVar(&coll.Description, "description", "", "description")
	create.Flags().StringVar(&coll.VectorStoreId, "vector-store", "", "vector store config id")
	create.Flags().StringVar(&coll.EmbeddingProvider, "embedding-provider", "openai", "openai, google or local")
	create.Flags().StringVar(&coll.EmbeddingModel, "embedding-model", "", "embedding model")
	create.Flags().IntVar(&coll.EmbeddingDimensions, "dimensions", 0, "vector size, resolved from the model when 0")
	create.Flags().StringVar(&coll.DefaultChunkingStrategyId, "chunking-strategy", "", "default chunking strategy id")
	create.Flags().StringVar(&coll.DefaultCleansingConfigId, "cleansing-config", "", "default cleansing config id")
	_ = create.MarkFlagRequired("vector-store")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a collection with all of its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return describe(a.Orchestrator.DeleteCollection(cmd.Context(), args[0]))
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats ID",
		Short: "Show vector counts for a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				s, err := a.Orchestrator.CollectionStats(cmd.Context(), args[0])
				if err != nil {
					return describe(err)
				}
				return printJSON(s)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				colls, err := a.Orchestrator.Collections(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(colls)
			})
		},
	}

	cmd.AddCommand(create, del, stats, list)
	return cmd
}

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage approximate nearest neighbour indexes",
	}

	var opts vectorDB.IndexOptions
	create := &cobra.Command{
		Use:   "create COLLECTION_ID",
		Short: "Build an index on a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return describe(a.Orchestrator.CreateIndex(cmd.Context(), args[0], opts))
			})
		},
	}
	create.Flags().StringVar(&opts.Type, "type", vectorDB.IndexHNSW, "hnsw or ivfflat")
	create.Flags().IntVar(&opts.M, "m", 0, "hnsw max connections")
	create.Flags().IntVar(&opts.EfConstruction, "ef-construction", 0, "hnsw build width")
	create.Flags().IntVar(&opts.Lists, "lists", 0, "ivfflat list count")

	drop := &cobra.Command{
		Use:   "drop COLLECTION_ID",
		Short: "Drop the index of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return describe(a.Orchestrator.DropIndex(cmd.Context(), args[0]))
			})
		},
	}

	cmd.AddCommand(create, drop)
	return cmd
}

func compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact COLLECTION_ID",
		Short: "Rebuild a collection without its deleted vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				removed, err := a.Orchestrator.Compact(cmd.Context(), args[0])
				if err != nil {
					return describe(err)
				}
				return printJSON(map[string]int{"removed": removed})
			})
		},
	}
}

func describe(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(ragErrors.Describe(err))
}
