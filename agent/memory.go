package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cargomesh/cargomesh/backend"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/internal/util"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/tool"
	"github.com/google/uuid"
)

const memorySystemPrompt = `You are the memory specialist of a logistics platform.
You store facts the user asks you to remember and recall them on request.
Store facts verbatim with remember_fact. When recalling, search stored facts
with recall_facts and present the matches; if nothing matches say so plainly.
Answer in the language of the question.`

const memorySchema = `facts(fact_id TEXT, session_id TEXT, content TEXT, created_at TEXT)`

// NewMemory constructs the memory-domain agent. Unlike the other agents it
// writes to the backend: remember_fact goes through the transactional write
// path.
func NewMemory(o oracle.Oracle, kb backend.Backend, optFns ...func(o *Options)) *Base {
	return New(Spec{
		Domain:      core.DomainMemory,
		Description: "Memory: remember user-stated facts and recall them later",
		Keywords: []string{
			"기억", "저장", "메모", "저장해줘", "기억해", "뭐였지", "알려줬던",
			"remember", "recall", "memorize", "note", "stored", "save this",
		},
		SystemPrompt: memorySystemPrompt,
		SchemaSubset: memorySchema,
		BuildTools:   func() []tool.Tool { return memoryTools(kb) },
	}, o, optFns...)
}

func memoryTools(kb backend.Backend) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"remember_fact",
			"Store a fact so it can be recalled in later conversations",
			util.ObjectSchema(map[string]any{
				"content":    util.StringProp("the fact to store, verbatim"),
				"session_id": util.StringProp("session the fact belongs to; empty for global facts"),
			}, "content"),
			func(ctx context.Context, args map[string]any) (string, error) {
				content := strArg(args, "content")
				if content == "" {
					return "", fmt.Errorf("content must not be empty")
				}
				id := uuid.NewString()
				err := kb.ExecuteWrite(ctx, backend.Statement{
					Query: `INSERT INTO facts (fact_id, session_id, content, created_at)
						 VALUES (:id, :session, :content, :created)`,
					Params: map[string]any{
						"id":      id,
						"session": strArg(args, "session_id"),
						"content": content,
						"created": time.Now().UTC().Format(time.RFC3339),
					},
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Stored fact %s.", id), nil
			},
		),
		tool.NewFunctionTool(
			"recall_facts",
			"Search previously stored facts by content",
			util.ObjectSchema(map[string]any{
				"search":     util.StringProp("content search term, substring match; empty returns the most recent facts"),
				"session_id": util.StringProp("restrict to one session; empty searches all"),
				"limit":      util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT fact_id, session_id, content, created_at FROM facts
					 WHERE (:search = '' OR content LIKE '%' || :search || '%')
					   AND (:session = '' OR session_id = :session)
					 ORDER BY created_at DESC LIMIT :limit`,
					map[string]any{
						"search":  strArg(args, "search"),
						"session": strArg(args, "session_id"),
						"limit":   intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Stored facts", records), nil
			},
		),
	}
}
