// Package server exposes the negotiation engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"stagelink/internal/engine"
	"stagelink/internal/repo"
	"stagelink/internal/visibility"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"conflict"`
	Message string         `json:"message" example:"conflict: stale version, re-read and retry"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError is the error envelope for every non-2xx response.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Stagelink API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema validation failures are client errors, not state errors.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Stagelink API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerProposals(group, cfg.Engine)
	registerDancers(group, cfg.Engine)
	registerClients(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine and repo errors onto the HTTP taxonomy.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ise engine.InvalidStateError
	if errors.As(err, &ise) {
		return newAPIError(http.StatusUnprocessableEntity, "invalid_state", err.Error(), map[string]any{
			"status": ise.Status,
			"action": ise.Action,
		})
	}
	var fe engine.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrConflict) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), map[string]any{
			"hint": "re-read the proposal and retry",
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "gateway unavailable"):
		return newAPIError(http.StatusServiceUnavailable, "upstream_unavailable", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "must"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "invalid_state"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusServiceUnavailable:
		return "upstream_unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Stagelink API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		now := e.NowUTC()
		if err := e.Repo.EnsureAccount(ctx, accountID, "", now); err != nil {
			return nil, handleError(err)
		}
		p, err := e.CreateProject(ctx, engine.ProjectOptions{
			ID:         input.Body.ID,
			OwnerID:    accountID,
			ParentID:   input.Body.ParentID,
			ClientID:   input.Body.ClientID,
			PMDancerID: input.Body.PMDancerID,
			Title:      input.Body.Title,
			Category:   input.Body.Category,
			Budget:     input.Body.Budget,
			StartDate:  input.Body.StartDate,
			EndDate:    input.Body.EndDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List own projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListProjectsByOwner(ctx, accountID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if _, authErr := accountIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-project-visibility",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/visibility",
		Summary:     "Set project visibility",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      SetVisibilityRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.SetVisibility(ctx, input.ProjectID, accountID, input.Body.Visibility, input.Body.EmbargoDate)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProject(ctx, input.ProjectID, accountID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerProposals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-proposal",
		Method:        http.MethodPost,
		Path:          "/proposals",
		Summary:       "Create proposal",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProposalRequest `json:"body"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Propose(ctx, engine.ProposeOptions{
			ProjectID: input.Body.ProjectID,
			DancerID:  input.Body.DancerID,
			SenderID:  accountID,
			Role:      input.Body.Role,
			Fee:       input.Body.Fee,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-proposals",
		Method:      http.MethodGet,
		Path:        "/proposals",
		Summary:     "List proposals",
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		DancerID  string `query:"dancer_id"`
		Status    string `query:"status"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []ProposalResponse `json:"body"`
	}, error) {
		if _, authErr := accountIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		f := repo.ProposalFilters{
			ProjectID: input.ProjectID,
			DancerID:  input.DancerID,
			Limit:     input.Limit,
		}
		if input.Status != "" {
			f.Statuses = strings.Split(input.Status, ",")
		}
		items, err := e.Repo.ListProposals(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProposalResponse `json:"body"`
		}{Body: mapProposals(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-proposal",
		Method:      http.MethodGet,
		Path:        "/proposals/{id}",
		Summary:     "Get proposal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		if _, authErr := accountIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetProposal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-proposal",
		Method:      http.MethodPost,
		Path:        "/proposals/{id}/respond",
		Summary:     "Respond to proposal",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body RespondRequest `json:"body"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Respond(ctx, engine.RespondOptions{
			ProposalID: input.ID,
			ActorID:    accountID,
			Action:     input.Body.Action,
			Message:    input.Body.Message,
			Fee:        input.Body.Fee,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-proposal",
		Method:      http.MethodPost,
		Path:        "/proposals/{id}/cancel",
		Summary:     "Cancel proposal",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Cancel(ctx, input.ID, accountID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-proposal",
		Method:      http.MethodPost,
		Path:        "/proposals/{id}/read",
		Summary:     "Mark proposal read",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.MarkRead(ctx, input.ID, accountID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unread-proposal",
		Method:      http.MethodGet,
		Path:        "/proposals/{id}/unread",
		Summary:     "Unread count",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body UnreadResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.UnreadCount(ctx, input.ID, accountID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UnreadResponse `json:"body"`
		}{Body: UnreadResponse{ProposalID: input.ID, Unread: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "proposal-history",
		Method:      http.MethodGet,
		Path:        "/proposals/{id}/history",
		Summary:     "Negotiation history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []EntryResponse `json:"body"`
	}, error) {
		if _, authErr := accountIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		entries, err := e.History(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EntryResponse `json:"body"`
		}{Body: mapEntries(entries)}, nil
	})
}

func registerDancers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-dancer",
		Method:        http.MethodPost,
		Path:          "/dancers",
		Summary:       "Create dancer profile",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateDancerRequest `json:"body"`
	}) (*struct {
		Body DancerResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		now := e.NowUTC()
		if err := e.Repo.EnsureAccount(ctx, accountID, input.Body.Name, now); err != nil {
			return nil, handleError(err)
		}
		if input.Body.ManagerAccountID != nil {
			if err := e.Repo.EnsureAccount(ctx, *input.Body.ManagerAccountID, "", now); err != nil {
				return nil, handleError(err)
			}
		}
		id := input.Body.ID
		if id == "" {
			id = uuid.New().String()
		}
		d := domainDancer(id, accountID, input.Body.ManagerAccountID, input.Body.Name, now)
		if err := e.Repo.InsertDancer(ctx, d); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DancerResponse `json:"body"`
		}{Body: dancerResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-dancer",
		Method:      http.MethodGet,
		Path:        "/dancers/{id}",
		Summary:     "Get dancer profile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DancerResponse `json:"body"`
	}, error) {
		if _, authErr := accountIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		d, err := e.Repo.GetDancer(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DancerResponse `json:"body"`
		}{Body: dancerResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-career-entry",
		Method:        http.MethodPost,
		Path:          "/dancers/{id}/career-entries",
		Summary:       "Add career entry",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body CreateCareerEntryRequest `json:"body"`
	}) (*struct {
		Body CareerEntryResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		dancer, err := e.Repo.GetDancer(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if !dancer.OwnedBy(accountID) {
			return nil, handleError(engine.ForbiddenError{ActorID: accountID, Action: "edit this dancer profile"})
		}
		entry := domainCareerEntry(dancer.ID, input.Body, e.NowUTC())
		if err := e.Repo.InsertCareerEntry(ctx, entry); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CareerEntryResponse `json:"body"`
		}{Body: CareerEntryResponse{
			ID:          entry.ID,
			DancerID:    entry.DancerID,
			Title:       entry.Title,
			Description: entry.Description,
			ProjectID:   entry.ProjectID,
			Fee:         entry.Fee,
			CreatedAt:   entry.CreatedAt,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dancer-settlement",
		Method:      http.MethodGet,
		Path:        "/dancers/{id}/settlement",
		Summary:     "Settlement statement",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body SettlementResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		dancer, err := e.Repo.GetDancer(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if !dancer.OwnedBy(accountID) {
			return nil, handleError(engine.ForbiddenError{ActorID: accountID, Action: "read this settlement"})
		}
		st, err := e.Settlement(ctx, dancer.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SettlementResponse `json:"body"`
		}{Body: SettlementResponse{
			DancerID:       dancer.ID,
			Income:         st.Income,
			Expense:        st.Expense,
			PendingTotal:   st.PendingTotal,
			CompletedTotal: st.CompletedTotal,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dancer-public-profile",
		Method:      http.MethodGet,
		Path:        "/dancers/{id}/public-profile",
		Summary:     "Public career profile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domainPublicEntry `json:"body"`
	}, error) {
		resolver := visibility.Resolver{Repo: e.Repo, Logger: e.Logger, Now: e.Now}
		entries, err := resolver.PublicProfile(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domainPublicEntry `json:"body"`
		}{Body: entries}, nil
	})
}

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create client profile",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateClientProfileRequest `json:"body"`
	}) (*struct {
		Body ClientProfileResponse `json:"body"`
	}, error) {
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		now := e.NowUTC()
		if err := e.Repo.EnsureAccount(ctx, accountID, input.Body.Name, now); err != nil {
			return nil, handleError(err)
		}
		id := input.Body.ID
		if id == "" {
			id = uuid.New().String()
		}
		c := domainClientProfile(id, accountID, input.Body.Name, now)
		if err := e.Repo.InsertClientProfile(ctx, c); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ClientProfileResponse `json:"body"`
		}{Body: ClientProfileResponse{
			ID:             c.ID,
			OwnerAccountID: c.OwnerAccountID,
			Name:           c.Name,
			CreatedAt:      c.CreatedAt,
		}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest events",
	}, func(ctx context.Context, input *struct {
		ProjectID  string `query:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		if _, authErr := accountIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.LatestEvents(ctx, input.Limit, input.ProjectID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}
