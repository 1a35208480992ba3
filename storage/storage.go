// Package storage persists widget transcripts in sqlite. The conversation
// lives in memory; this layer is write-behind and every failure here is
// survivable.
package storage

import (
	"fmt"
	"log/slog"

	"agent-widget/models"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

type TranscriptStore interface {
	ListChats() ([]models.Chat, error)
	GetChatByID(id uint32) (*models.Chat, error)
	GetLastChat() (*models.Chat, error)
	UpsertChat(chat *models.Chat) (*models.Chat, error)
	RemoveChat(id uint32) error
}

type ProviderSQL struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewProviderSQL(dbPath string, logger *slog.Logger) (*ProviderSQL, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	p := &ProviderSQL{db: db, logger: logger}
	if err := p.Migrate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ProviderSQL) ListChats() ([]models.Chat, error) {
	resp := []models.Chat{}
	err := p.db.Select(&resp, "SELECT * FROM chats ORDER BY updated_at;")
	return resp, err
}

func (p *ProviderSQL) GetChatByID(id uint32) (*models.Chat, error) {
	resp := models.Chat{}
	err := p.db.Get(&resp, "SELECT * FROM chats WHERE id=$1;", id)
	return &resp, err
}

func (p *ProviderSQL) GetLastChat() (*models.Chat, error) {
	resp := models.Chat{}
	err := p.db.Get(&resp, "SELECT * FROM chats ORDER BY updated_at DESC LIMIT 1;")
	return &resp, err
}

func (p *ProviderSQL) UpsertChat(chat *models.Chat) (*models.Chat, error) {
	if chat.ID == 0 {
		query := `
        INSERT INTO chats (name, msgs, created_at, updated_at)
        VALUES (:name, :msgs, :created_at, :updated_at)
        RETURNING *;`
		stmt, err := p.db.PrepareNamed(query)
		if err != nil {
			return nil, err
		}
		var resp models.Chat
		err = stmt.Get(&resp, chat)
		return &resp, err
	}
	query := `
        INSERT OR REPLACE INTO chats (id, name, msgs, created_at, updated_at)
        VALUES (:id, :name, :msgs, :created_at, :updated_at)
        RETURNING *;`
	stmt, err := p.db.PrepareNamed(query)
	if err != nil {
		return nil, err
	}
	var resp models.Chat
	err = stmt.Get(&resp, chat)
	return &resp, err
}

func (p *ProviderSQL) RemoveChat(id uint32) error {
	_, err := p.db.Exec("DELETE FROM chats WHERE id = $1;", id)
	return err
}
