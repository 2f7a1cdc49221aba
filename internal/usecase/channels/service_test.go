package channels

import (
	"context"
	"errors"
	"testing"

	"agent-radar/internal/domain"
)

type stubChannels struct {
	items   []domain.PushChannel
	nextID  int64
	updated int
}

func (s *stubChannels) ListChannels(_ context.Context, userID int64) ([]domain.PushChannel, error) {
	var out []domain.PushChannel
	for _, ch := range s.items {
		if ch.UserID == userID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (s *stubChannels) ListActiveChannels(ctx context.Context, userID int64) ([]domain.PushChannel, error) {
	return s.ListChannels(ctx, userID)
}

func (s *stubChannels) GetChannelByType(_ context.Context, userID int64, t domain.ChannelType) (domain.PushChannel, error) {
	for _, ch := range s.items {
		if ch.UserID == userID && ch.Type == t {
			return ch, nil
		}
	}
	return domain.PushChannel{}, domain.ErrNotFound
}

func (s *stubChannels) CreateChannel(_ context.Context, ch domain.PushChannel) (domain.PushChannel, error) {
	s.nextID++
	ch.ID = s.nextID
	s.items = append(s.items, ch)
	return ch, nil
}

func (s *stubChannels) UpdateChannel(_ context.Context, ch domain.PushChannel) error {
	for i := range s.items {
		if s.items[i].ID == ch.ID {
			s.items[i] = ch
			s.updated++
			return nil
		}
	}
	return domain.ErrNotFound
}

type stubSources struct {
	items []domain.AiSource
}

func (s *stubSources) ListSources(_ context.Context, userID int64) ([]domain.AiSource, error) {
	var out []domain.AiSource
	for _, src := range s.items {
		if src.UserID == userID {
			out = append(out, src)
		}
	}
	return out, nil
}

func (s *stubSources) ListActiveSources(context.Context) ([]domain.AiSource, error) {
	return s.items, nil
}

func (s *stubSources) CreateSource(_ context.Context, src domain.AiSource) (domain.AiSource, error) {
	src.ID = int64(len(s.items) + 1)
	s.items = append(s.items, src)
	return src, nil
}

func (s *stubSources) SetSourceActive(context.Context, int64, int64, bool) error { return nil }

func (s *stubSources) DeleteSource(context.Context, int64, int64) error { return nil }

func TestUpsertChannelCreatesThenUpdates(t *testing.T) {
	repo := &stubChannels{}
	svc := NewService(repo, &stubSources{})
	ctx := context.Background()

	created, err := svc.UpsertChannel(ctx, 7, "wecom", ChannelInput{Name: "team", Webhook: " https://hook/1 "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || !created.Active || created.Webhook != "https://hook/1" {
		t.Fatalf("unexpected created channel: %+v", created)
	}

	off := false
	updated, err := svc.UpsertChannel(ctx, 7, "wecom", ChannelInput{Name: "team", Webhook: "https://hook/2", Active: &off})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID || updated.Active {
		t.Fatalf("unexpected updated channel: %+v", updated)
	}
	if len(repo.items) != 1 || repo.updated != 1 {
		t.Fatalf("ожидали один канал на тип, получили %d (updates %d)", len(repo.items), repo.updated)
	}
	if repo.items[0].Webhook != "https://hook/2" {
		t.Fatalf("webhook not updated: %+v", repo.items[0])
	}
}

func TestUpsertChannelWeChatFields(t *testing.T) {
	repo := &stubChannels{}
	svc := NewService(repo, &stubSources{})

	ch, err := svc.UpsertChannel(context.Background(), 7, "wechat", ChannelInput{
		AppID:      "wx",
		AppSecret:  "secret",
		TemplateID: "tpl",
		OpenIDs:    "o1, o2，o1,,",
		Webhook:    "ignored",
	})
	if err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	if ch.OpenIDs != "o1,o2" {
		t.Fatalf("unexpected openids %q", ch.OpenIDs)
	}
	if ch.Webhook != "" {
		t.Fatalf("webhook must be ignored for wechat")
	}
}

func TestUpsertChannelUnknownType(t *testing.T) {
	svc := NewService(&stubChannels{}, &stubSources{})
	_, err := svc.UpsertChannel(context.Background(), 7, "telegram", ChannelInput{})
	if !errors.Is(err, domain.ErrUnknownChannelType) {
		t.Fatalf("expected ErrUnknownChannelType, got %v", err)
	}
}

func TestAddSource(t *testing.T) {
	sources := &stubSources{}
	svc := NewService(&stubChannels{}, sources)
	ctx := context.Background()

	src, err := svc.AddSource(ctx, 7, "", " https://example.com/feed.xml ")
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if src.Name != "https://example.com/feed.xml" || src.Type != domain.SourceTypeRSS || !src.Active {
		t.Fatalf("unexpected source: %+v", src)
	}

	for _, bad := range []string{"", "ftp://example.com/feed", "not a url", "/relative"} {
		if _, err := svc.AddSource(ctx, 7, "x", bad); !errors.Is(err, ErrSourceURLInvalid) {
			t.Fatalf("ожидали ошибку для %q, получили %v", bad, err)
		}
	}
}
