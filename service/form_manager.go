package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"restaurant_live/internal/gateway"
	"restaurant_live/internal/model"
	"restaurant_live/internal/store"
)

// FormManager: owns the creation form draft held in the store.
type FormManager struct {
	Gateway gateway.Gateway
	Store   *store.Store

	logger zerolog.Logger
}

func NewFormManager(gw gateway.Gateway, st *store.Store, logger zerolog.Logger) *FormManager {
	return &FormManager{
		Gateway: gw,
		Store:   st,
		logger:  logger.With().Str("component", "form").Logger(),
	}
}

// OnFieldChange: one keystroke in the form. name is the form field name.
func (m *FormManager) OnFieldChange(name, value string) error {
	field, err := model.ParseField(name)
	if err != nil {
		m.logger.Warn().Err(err).Str("field", name).Msg("rejected form field")
		return err
	}
	if !field.Editable() {
		err := fmt.Errorf("%w: %s", model.ErrFieldNotEditable, field)
		m.logger.Warn().Err(err).Msg("rejected form field")
		return err
	}
	m.SetField(field, value)
	return nil
}

// SetField: merges one field into the draft. Callers pass an editable field.
func (m *FormManager) SetField(field model.Field, value string) {
	m.Store.MergeDraft(map[model.Field]string{field: value})
}

func (m *FormManager) Draft() model.Restaurant {
	return m.Store.Snapshot().Draft
}

// Submit: sends the draft to the gateway once. The draft is cleared only when the create succeeds.
func (m *FormManager) Submit(ctx context.Context) error {
	input := m.Draft().Input()

	created, err := m.Gateway.CreateOne(ctx, input)
	if err != nil {
		m.logger.Error().Err(err).Str("name", input.Name).Msg("failed to create restaurant")
		return err
	}
	m.logger.Info().Str("id", created.ID).Str("name", created.Name).Msg("restaurant created")

	if ctx.Err() != nil {
		return nil
	}
	m.Store.MergeDraft(model.EmptyDraft())
	return nil
}
