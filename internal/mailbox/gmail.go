package mailbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	inboxLabel = "INBOX"

	// maxListResults is the largest page Gmail returns from messages.list
	maxListResults = 500

	defaultFetchConcurrency = 4
)

var _ core.MailboxImporter = (*GmailImporter)(nil)

// GmailImporter copies the newest inbox messages of one mailbox into the
// message sink. Only metadata and the snippet are fetched.
type GmailImporter struct {
	httpClient  *http.Client
	sink        core.MessageSink
	log         *zap.Logger
	endpoint    string
	concurrency int
}

// Option configures a GmailImporter
type Option func(*GmailImporter)

// WithEndpoint points the importer at a different Gmail API base URL
func WithEndpoint(endpoint string) Option {
	return func(g *GmailImporter) {
		g.endpoint = endpoint
	}
}

// WithConcurrency bounds the parallel messages.get calls
func WithConcurrency(n int) Option {
	return func(g *GmailImporter) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

func NewGmailImporter(
	httpClient *http.Client,
	sink core.MessageSink,
	log *zap.Logger,
	opts ...Option,
) *GmailImporter {
	g := &GmailImporter{
		httpClient:  httpClient,
		sink:        sink,
		log:         log,
		concurrency: defaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Import lists up to req.Limit inbox messages and stores them with both
// ownership attributes. A 401 from Gmail is reported as token.ErrCredentialExpired.
func (g *GmailImporter) Import(ctx context.Context, req core.ImportRequest) (*core.ImportResult, error) {
	start := time.Now()
	if req.Limit <= 0 {
		return &core.ImportResult{Duration: time.Since(start)}, nil
	}
	if req.AccountOwner == "" || req.EmailHolder == "" {
		return nil, errors.New("import requires both account owner and email holder")
	}

	svc, err := g.service(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	list, err := svc.Users.Messages.List("me").
		LabelIds(inboxLabel).
		MaxResults(int64(min(req.Limit, maxListResults))).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("list messages", err)
	}

	refs := list.Messages
	if len(refs) > req.Limit {
		refs = refs[:req.Limit]
	}

	messages, err := g.fetchAll(ctx, svc, refs, req)
	if err != nil {
		return nil, err
	}

	stored, err := g.sink.SaveImportedMessages(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to store imported messages: %w", err)
	}

	return &core.ImportResult{
		Fetched:  len(messages),
		Stored:   stored,
		Duration: time.Since(start),
	}, nil
}

func (g *GmailImporter) service(ctx context.Context, tok models.Token) (*gmail.Service, error) {
	clientCtx := context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	client := oauth2.NewClient(clientCtx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.ExpiresAt,
	}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	return gmail.NewService(ctx, opts...)
}

// fetchAll reads message metadata in parallel. A message that disappears
// between list and get is skipped; any other failure aborts the import.
func (g *GmailImporter) fetchAll(
	ctx context.Context,
	svc *gmail.Service,
	refs []*gmail.Message,
	req core.ImportRequest,
) ([]models.ImportedMessage, error) {
	var (
		mu       sync.Mutex
		messages = make([]models.ImportedMessage, 0, len(refs))
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for _, ref := range refs {
		eg.Go(func() error {
			msg, err := svc.Users.Messages.Get("me", ref.Id).
				Format("metadata").
				MetadataHeaders("Subject", "From").
				Context(egCtx).
				Do()
			if err != nil {
				if isStatus(err, http.StatusNotFound) {
					g.log.Debug("message vanished during import", zap.String("message_id", ref.Id))
					return nil
				}
				return classify("get message", err)
			}

			imported := toImportedMessage(msg, req)
			mu.Lock()
			messages = append(messages, imported)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return messages, nil
}

func toImportedMessage(msg *gmail.Message, req core.ImportRequest) models.ImportedMessage {
	var subject, sender string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				subject = h.Value
			case "from":
				sender = h.Value
			}
		}
	}
	return models.ImportedMessage{
		ID:                uuid.New().String(),
		AccountOwner:      req.AccountOwner,
		EmailHolder:       req.EmailHolder,
		ProviderMessageID: msg.Id,
		ThreadID:          msg.ThreadId,
		Subject:           subject,
		Sender:            sender,
		Snippet:           msg.Snippet,
		ReceivedAt:        time.UnixMilli(msg.InternalDate).UTC(),
		CreatedAt:         time.Now(),
	}
}

func classify(op string, err error) error {
	if isStatus(err, http.StatusUnauthorized) {
		return fmt.Errorf("%w: %s: %v", token.ErrCredentialExpired, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
