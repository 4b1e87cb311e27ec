package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"halfjourney/internal/domain"
)

const (
	messageNotValidType = "Not a valid type"
	messageNoCommand    = "no command"
)

// Reply is the synchronous answer to an interaction. A zero Type means a
// plain {"message": ...} acknowledgment.
type Reply struct {
	Type    domain.ResponseType
	Content string
	Message string
}

// CommandInput is everything a command handler needs from the interaction.
type CommandInput struct {
	Name             string
	Prompt           string
	User             domain.User
	InteractionID    string
	InteractionToken string
}

type CommandHandler interface {
	HandleCommand(ctx context.Context, in CommandInput) (Reply, error)
}

// Router dispatches authenticated interactions to command handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]CommandHandler)}
}

func (r *Router) Register(name string, h CommandHandler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("usecase: command name must not be empty")
	}
	if h == nil {
		return errors.New("usecase: command handler must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("usecase: command %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Router) Route(ctx context.Context, in domain.Interaction) (Reply, error) {
	switch in.Type {
	case domain.InteractionPing:
		return Reply{Type: domain.ResponsePong}, nil
	case domain.InteractionApplicationCommand:
		cmd := ExtractCommand(in)
		r.mu.RLock()
		h, ok := r.handlers[cmd.Name]
		r.mu.RUnlock()
		if !ok {
			return Reply{Message: messageNoCommand}, nil
		}
		return h.HandleCommand(ctx, cmd)
	default:
		return Reply{Message: messageNotValidType}, nil
	}
}

// ExtractCommand reads the command name and prompt. Only the first option is
// used as the prompt; further options are ignored.
func ExtractCommand(in domain.Interaction) CommandInput {
	cmd := CommandInput{
		User:             in.Invoker(),
		InteractionID:    in.ID,
		InteractionToken: in.Token,
	}
	if in.Data == nil {
		return cmd
	}
	cmd.Name = in.Data.Name
	if len(in.Data.Options) > 0 {
		cmd.Prompt = in.Data.Options[0].StringValue()
	}
	return cmd
}
