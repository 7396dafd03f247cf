package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/audit"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/auth"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/journal"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/obs"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/pipeline"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/validate"
)

// exchange is the request-scoped state every stage reads and writes.
// Endpoint-specific values live in the handler's closure.
type exchange struct {
	r      *http.Request
	caller auth.Caller
	user   domain.User
	body   map[string]any
	raw    []byte
	status int
	result any
}

type stage = pipeline.Stage[exchange]

func step(name string, run func(ctx context.Context, x *exchange) error) stage {
	return pipeline.Step(name, run)
}

// route describes how serve treats an endpoint.
type route struct {
	op     string
	public bool
}

// serve runs the gate, then the stages, then writes the response.
func (a *API) serve(w http.ResponseWriter, r *http.Request, rt route, stages ...stage) {
	x := &exchange{r: r, status: http.StatusOK}
	ctx := r.Context()

	if !rt.public {
		caller, err := a.verifier.Authenticate(r.Header.Get(authHeader))
		if err != nil {
			a.fail(w, r, rt.op, "gate", err)
			return
		}
		x.caller = caller
		ctx = auth.ContextWithCaller(ctx, caller)
	}
	if err := x.readBody(); err != nil {
		a.fail(w, r, rt.op, "body", err)
		return
	}

	p := pipeline.New(rt.op, stages...)
	mutation := !rt.public && isMutation(r.Method)
	if mutation && a.journal != nil {
		ctx, _ = journal.WithRun(ctx)
		p.Observe(a.journal)
	}
	if err := p.Run(ctx, x); err != nil {
		stageName := ""
		var se *pipeline.StageError
		if errors.As(err, &se) {
			stageName = se.Stage
		}
		a.fail(w, r, rt.op, stageName, err)
		return
	}
	if mutation {
		_ = audit.LogEvent(ctx, rt.op, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}
	x.write(w)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, op, stageName string, err error) {
	e := apierr.From(err)
	obs.ObservePipelineFailure(op, stageName, e.Reason)
	if e.Code >= http.StatusInternalServerError {
		obs.Error("request_failed", map[string]any{
			"request_id": obs.RequestIDFromContext(r.Context()),
			"operation":  op,
			"stage":      stageName,
			"error":      err.Error(),
		})
	}
	writeError(w, r, e)
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// readBody keeps the raw body and its decoded object. An empty body leaves
// x.body nil so validate.Required reports EmptyRequestBodyError.
func (x *exchange) readBody() error {
	if x.r.Body == nil || x.r.Method == http.MethodGet {
		return nil
	}
	raw, err := io.ReadAll(x.r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.PayloadTooLarge(tooLarge.Limit)
		}
		return apierr.FieldValidation("The request body could not be read.")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return apierr.FieldValidation("The request body must be a JSON object.")
	}
	if dec.More() {
		return apierr.FieldValidation("Unexpected data after the JSON body.")
	}
	x.raw = raw
	x.body = body
	return nil
}

// decode reads the body into a typed view.
func (x *exchange) decode(dst any) error {
	if err := json.Unmarshal(x.raw, dst); err != nil {
		return apierr.FieldValidation("The request body has fields of the wrong type.")
	}
	return nil
}

// str returns a trimmed string body field, "" when absent or not a string.
func (x *exchange) str(field string) string {
	s, _ := x.body[field].(string)
	return strings.TrimSpace(s)
}

func (x *exchange) path(name string) string { return x.r.PathValue(name) }

func (x *exchange) query(name string) string {
	return strings.TrimSpace(x.r.URL.Query().Get(name))
}

// reply sets the response body.
func (x *exchange) reply(v any) { x.result = v }

// ok replies with the constructed {code:200, description} envelope.
func (x *exchange) ok(description string) { x.result = apierr.Success(description) }

type rawDoc interface {
	Raw() json.RawMessage
}

// doc replies with the document exactly as the collaborator returned it.
func (x *exchange) doc(d rawDoc) {
	if raw := d.Raw(); len(raw) > 0 {
		x.result = raw
		return
	}
	x.result = d
}

func (x *exchange) write(w http.ResponseWriter) {
	switch v := x.result.(type) {
	case nil:
		writeJSON(w, x.status, apierr.Success("OK"))
	case json.RawMessage:
		writeRaw(w, x.status, v)
	default:
		writeJSON(w, x.status, v)
	}
}

// bodyCopy copies the request object so computed fields never touch x.body.
func (x *exchange) bodyCopy() map[string]any {
	out := make(map[string]any, len(x.body)+4)
	for k, v := range x.body {
		out[k] = v
	}
	return out
}

// --- shared stages ---

func (a *API) uuids(pairs ...string) stage {
	return step("validate", func(context.Context, *exchange) error {
		return validate.UUIDs(pairs...)
	})
}

// identity loads the caller's user record.
func (a *API) identity() stage {
	return step("identity", func(ctx context.Context, x *exchange) error {
		u, err := a.svc.Identity.User(ctx, x.caller.ID)
		if err != nil {
			return err
		}
		x.user = u
		return nil
	})
}

// rejectFields refuses body keys that only the service may set.
func rejectFields(body map[string]any, fields ...string) error {
	var bad []string
	for _, f := range fields {
		if _, ok := body[f]; ok {
			bad = append(bad, f)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return apierr.FieldValidation(fmt.Sprintf("The following fields cannot be updated: %s.", strings.Join(bad, ", ")))
}

// Denial descriptions for UserNotAuthenticatedError.
const (
	deniedMerchant       = "MerchantID not linked to user"
	deniedMerchantAdmin  = "User does not have admin rights on the merchant"
	deniedBusinessUnit   = "Businessunit not accessible to the user"
	deniedPointOfService = "Point-of-service not accessible to the user"
	deniedBalanceAccount = "Balance account not accessible to the user"
	deniedNetwork        = "Partner network not accessible to the user"
	deniedNetworkAdmin   = "User does not have admin rights on the partner network"
	deniedProduct        = "Product not accessible to the user"
	deniedAccount        = "Account not accessible to the user"
	deniedRetail         = "Retail transaction not accessible to the user"
	deniedOrder          = "Order not accessible to the user"
)

func denied(description string) *apierr.Error { return apierr.NotAuthenticated(description) }
