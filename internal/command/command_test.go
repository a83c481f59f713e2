package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"grajek/internal/filestore"
	"grajek/internal/limiter"
	"grajek/internal/player"
	"grajek/internal/playlist"
	"grajek/internal/queue"
	"grajek/internal/track"
)

type replyRecorder struct {
	msgs   []string
	embeds []*discordgo.MessageEmbed
}

func (r *replyRecorder) Send(content string) error {
	r.msgs = append(r.msgs, content)
	return nil
}

func (r *replyRecorder) SendEmbed(e *discordgo.MessageEmbed) error {
	r.embeds = append(r.embeds, e)
	return nil
}

func (r *replyRecorder) lastMsg() string {
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

type fakeMedia struct {
	resolveErr    error
	playlistSize  int
	searchResults []track.Metadata
}

func (m *fakeMedia) Resolve(ctx context.Context, input string) (track.Metadata, error) {
	if m.resolveErr != nil {
		return track.Metadata{}, m.resolveErr
	}
	return track.Metadata{ID: "vid-" + input, Title: input, Uploader: "ch", Duration: "120"}, nil
}

func (m *fakeMedia) SearchTop(ctx context.Context, query string, n int) ([]track.Metadata, error) {
	return m.searchResults, nil
}

func (m *fakeMedia) ResolvePlaylist(ctx context.Context, url string) ([]track.Metadata, error) {
	metas := make([]track.Metadata, m.playlistSize)
	for i := range metas {
		metas[i] = track.Metadata{ID: fmt.Sprintf("pl%d", i), Title: fmt.Sprintf("T%d", i), Uploader: "ch", Duration: "60"}
	}
	return metas, nil
}

type nullVoice struct{ playing bool }

func (v *nullVoice) Play(string) error       { v.playing = true; return nil }
func (v *nullVoice) Pause() error            { v.playing = false; return nil }
func (v *nullVoice) Resume() error           { v.playing = true; return nil }
func (v *nullVoice) Stop() error             { v.playing = false; return nil }
func (v *nullVoice) IsPlaying() bool         { return v.playing }
func (v *nullVoice) IsPaused() bool          { return false }
func (v *nullVoice) SetVolume(float64) error { return nil }
func (v *nullVoice) Disconnect() error       { return nil }

type nullConnector struct{ voice *nullVoice }

func (c *nullConnector) Connect(guildID, channelID string) (player.VoiceSession, error) {
	return c.voice, nil
}

type mapLocator map[string]string

func (l mapLocator) UserVoiceChannel(guildID, userID string) (string, bool) {
	ch, ok := l[userID]
	return ch, ok
}

type nullNotifier struct{}

func (nullNotifier) NowPlaying(string, track.Track)           {}
func (nullNotifier) PlaybackError(string, track.Track, error) {}
func (nullNotifier) AutoDJAdded(string, []track.Track)        {}

type storeResolver struct{ files *filestore.Store }

func (r *storeResolver) Download(ctx context.Context, meta track.Metadata) (string, error) {
	path := r.files.PathFor(meta.ID)
	return path, os.WriteFile(path, []byte("a"), 0o644)
}

func (r *storeResolver) SimilarTo(ctx context.Context, t track.Track, n int) ([]track.Metadata, error) {
	return nil, nil
}

type cmdFixture struct {
	deps   *Deps
	queues *queue.Manager
	limits *limiter.Limiter
	media  *fakeMedia
}

func newCmdFixture(t *testing.T) *cmdFixture {
	t.Helper()
	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	playlists, err := playlist.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	queues := queue.NewManager()
	limits := limiter.New(3*time.Second, 15)
	media := &fakeMedia{}

	players := player.NewManager(player.Deps{
		Queues:    queues,
		Limits:    limits,
		Files:     files,
		Resolver:  &storeResolver{files: files},
		Connector: &nullConnector{voice: &nullVoice{}},
		Locator:   mapLocator{"u1": "vc1"},
		Notifier:  nullNotifier{},
	}, player.Options{PollInterval: time.Hour})

	return &cmdFixture{
		deps: &Deps{
			Players:   players,
			Queues:    queues,
			Limits:    limits,
			Media:     media,
			Playlists: playlists,
		},
		queues: queues,
		limits: limits,
		media:  media,
	}
}

func invoke(t *testing.T, c Command, inv *Invocation) *replyRecorder {
	t.Helper()
	rec := &replyRecorder{}
	inv.Reply = rec
	if err := c.Run(context.Background(), inv); err != nil {
		t.Fatalf("%s: %v", c.Name(), err)
	}
	return rec
}

func baseInv(userID string) *Invocation {
	return &Invocation{GuildID: "g1", ChannelID: "c1", UserID: userID, Username: "user-" + userID}
}

func TestPlaySingleTrack(t *testing.T) {
	f := newCmdFixture(t)
	c := &playCommand{f.deps}

	inv := baseInv("u1")
	inv.Args = []string{"some", "song"}
	rec := invoke(t, c, inv)

	if len(rec.embeds) != 1 || rec.embeds[0].Title != "Dodano do kolejki" {
		t.Fatalf("embeds = %+v, want confirmation", rec.embeds)
	}
	// Track went straight into playback, so the queue is drained but the
	// quota slot was released again.
	if cur, ok := f.queues.Current("g1"); !ok || cur.Title != "some song" {
		t.Errorf("current = (%v, %v)", cur.Title, ok)
	}
	if f.limits.Count("u1", "g1") != 0 {
		t.Errorf("quota count = %d, want 0 after dequeue", f.limits.Count("u1", "g1"))
	}
}

func TestPlayOutsideVoiceChannelStillQueues(t *testing.T) {
	f := newCmdFixture(t)
	c := &playCommand{f.deps}

	inv := baseInv("u9") // not in any voice channel
	inv.Args = []string{"song"}
	rec := invoke(t, c, inv)

	if f.queues.Len("g1") != 1 {
		t.Errorf("queue length = %d, want 1", f.queues.Len("g1"))
	}
	if !strings.Contains(rec.lastMsg(), "Dołącz do kanału głosowego") {
		t.Errorf("last reply = %q, want join hint", rec.lastMsg())
	}
}

func TestPlayRespectsQuota(t *testing.T) {
	f := newCmdFixture(t)
	f.limits.AdjustCount("u9", "g1", 15)
	c := &playCommand{f.deps}

	inv := baseInv("u9")
	inv.Args = []string{"song"}
	rec := invoke(t, c, inv)

	if f.queues.Len("g1") != 0 {
		t.Errorf("queue length = %d, want 0 at quota", f.queues.Len("g1"))
	}
	if !strings.Contains(rec.lastMsg(), "limit") {
		t.Errorf("last reply = %q, want quota message", rec.lastMsg())
	}
}

func TestPlayPlaylistPartialAdmission(t *testing.T) {
	f := newCmdFixture(t)
	f.media.playlistSize = 20
	c := &playCommand{f.deps}

	inv := baseInv("u9") // stays queued, no voice channel
	inv.Args = []string{"https://www.youtube.com/playlist?list=PLx"}
	rec := invoke(t, c, inv)

	if f.queues.Len("g1") != 15 {
		t.Errorf("queue length = %d, want 15 (quota cap)", f.queues.Len("g1"))
	}
	if f.limits.Count("u9", "g1") != 15 {
		t.Errorf("quota count = %d, want 15", f.limits.Count("u9", "g1"))
	}
	if len(rec.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(rec.embeds))
	}
	var hasWarning bool
	for _, fld := range rec.embeds[0].Fields {
		if fld.Name == "Uwaga" && strings.Contains(fld.Value, "15 z 20") {
			hasWarning = true
		}
	}
	if !hasWarning {
		t.Error("partial admission should carry a shortfall notice")
	}
}

func TestDeleteOwnerOnly(t *testing.T) {
	f := newCmdFixture(t)
	f.queues.Enqueue("g1", track.Track{ID: "a", Title: "A", Uploader: "ch", Duration: 1, AddedBy: "owner", AddedByID: "u1"})
	f.limits.AdjustCount("u1", "g1", 1)
	c := &deleteCommand{f.deps}

	inv := baseInv("u2")
	inv.Args = []string{"1"}
	rec := invoke(t, c, inv)
	if !strings.Contains(rec.lastMsg(), "swoje utwory") {
		t.Errorf("reply = %q, want ownership refusal", rec.lastMsg())
	}
	if f.queues.Len("g1") != 1 {
		t.Error("foreign delete must not remove the track")
	}

	// Admins may remove anyone's track.
	admin := baseInv("u3")
	admin.IsAdmin = true
	admin.Args = []string{"1"}
	rec = invoke(t, c, admin)
	if len(rec.embeds) != 1 || rec.embeds[0].Title != "Usunięto z kolejki" {
		t.Fatalf("embeds = %+v, want removal confirmation", rec.embeds)
	}
	if f.queues.Len("g1") != 0 {
		t.Error("admin delete should remove the track")
	}
	if f.limits.Count("u1", "g1") != 0 {
		t.Error("removal should release the owner's quota slot")
	}
}

func TestDeleteBadPosition(t *testing.T) {
	f := newCmdFixture(t)
	c := &deleteCommand{f.deps}

	inv := baseInv("u1")
	inv.Args = []string{"7"}
	rec := invoke(t, c, inv)
	if !strings.Contains(rec.lastMsg(), "zły numer") {
		t.Errorf("reply = %q, want bad position message", rec.lastMsg())
	}
}

func TestSkipWithoutConnection(t *testing.T) {
	f := newCmdFixture(t)
	c := &skipCommand{f.deps}

	rec := invoke(t, c, baseInv("u1"))
	if !strings.Contains(rec.lastMsg(), "nie jest połączony") {
		t.Errorf("reply = %q, want not-connected message", rec.lastMsg())
	}
}

func TestFindNoResults(t *testing.T) {
	f := newCmdFixture(t)
	c := &findCommand{f.deps}

	inv := baseInv("u1")
	inv.Args = []string{"nothing"}
	rec := invoke(t, c, inv)
	if !strings.Contains(rec.lastMsg(), "Nie znaleziono") {
		t.Errorf("reply = %q", rec.lastMsg())
	}
}

func TestFindListsResults(t *testing.T) {
	f := newCmdFixture(t)
	f.media.searchResults = []track.Metadata{
		{ID: "r1", Title: "First", Uploader: "ch", Duration: "61"},
		{ID: "r2", Title: "Second", Uploader: "ch", Duration: "3600"},
	}
	c := &findCommand{f.deps}

	inv := baseInv("u1")
	inv.Args = []string{"query"}
	rec := invoke(t, c, inv)

	if len(rec.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(rec.embeds))
	}
	fields := rec.embeds[0].Fields
	if len(fields) != 3 { // searcher + 2 results
		t.Fatalf("fields = %d, want 3", len(fields))
	}
	if !strings.Contains(fields[1].Name, "0:01:01") {
		t.Errorf("field name = %q, want formatted duration", fields[1].Name)
	}
	if !strings.Contains(fields[1].Value, "watch?v=r1") {
		t.Errorf("field value = %q, want watch URL", fields[1].Value)
	}
}

func TestSaveAndLoadPlaylistReattributes(t *testing.T) {
	f := newCmdFixture(t)
	f.queues.EnqueueMany("g1", []track.Track{
		{ID: "a", Title: "A", Uploader: "ch", Duration: 1, AddedBy: "orig", AddedByID: "u1"},
		{ID: "b", Title: "B", Uploader: "ch", Duration: 2, AddedBy: "orig", AddedByID: "u1"},
	})

	save := baseInv("u1")
	save.Args = []string{"moja"}
	rec := invoke(t, &savePlaylistCommand{f.deps}, save)
	if !strings.Contains(rec.lastMsg(), "została zapisana z 2") {
		t.Fatalf("save reply = %q", rec.lastMsg())
	}

	f.queues.Clear("g1")
	f.limits.ClearGuild("g1")

	load := baseInv("u2") // a different user loads it, off-voice
	load.Args = []string{"moja"}
	rec = invoke(t, &loadPlaylistCommand{f.deps}, load)
	if len(rec.embeds) != 1 {
		t.Fatalf("load embeds = %d, want 1", len(rec.embeds))
	}

	for _, qt := range f.queues.Tracks("g1") {
		if qt.AddedByID != "u2" || qt.AddedBy != "user-u2" {
			t.Errorf("loaded track attribution = %q/%q, want loader's", qt.AddedBy, qt.AddedByID)
		}
	}
	if f.limits.Count("u2", "g1") != 2 {
		t.Errorf("quota count = %d, want 2", f.limits.Count("u2", "g1"))
	}
}

func TestLoadMissingPlaylist(t *testing.T) {
	f := newCmdFixture(t)
	inv := baseInv("u1")
	inv.Args = []string{"niema"}
	rec := invoke(t, &loadPlaylistCommand{f.deps}, inv)
	if !strings.Contains(rec.lastMsg(), "nie istnieje") {
		t.Errorf("reply = %q", rec.lastMsg())
	}
}

func TestRegistryAliases(t *testing.T) {
	f := newCmdFixture(t)
	r := NewRegistry()
	RegisterMusic(r, f.deps)

	tests := []struct {
		lookup string
		want   string
	}{
		{"p", "play"},
		{"play", "play"},
		{"sk", "skip"},
		{"loadp", "loadplaylist"},
		{"similar", "autodj"},
		{"h", "help"},
	}
	for _, tt := range tests {
		c := r.Get(tt.lookup)
		if c == nil || c.Name() != tt.want {
			t.Errorf("Get(%q) = %v, want %s", tt.lookup, c, tt.want)
		}
	}
	if r.Get("nope") != nil {
		t.Error("unknown command should return nil")
	}
}

func TestCooldownMiddleware(t *testing.T) {
	f := newCmdFixture(t)
	c := Apply(&loopCommand{f.deps}, WithCooldown(f.limits))

	first := invoke(t, c, baseInv("u1"))
	if strings.Contains(first.lastMsg(), "Poczekaj") {
		t.Fatalf("first call hit cooldown: %q", first.lastMsg())
	}

	second := invoke(t, c, baseInv("u1"))
	if !strings.Contains(second.lastMsg(), "Poczekaj") {
		t.Errorf("second call = %q, want cooldown message", second.lastMsg())
	}

	// Another user is unaffected.
	other := invoke(t, c, baseInv("u2"))
	if strings.Contains(other.lastMsg(), "Poczekaj") {
		t.Errorf("other user hit cooldown: %q", other.lastMsg())
	}
}

func TestGuildOnlyMiddleware(t *testing.T) {
	f := newCmdFixture(t)
	c := Apply(&loopCommand{f.deps}, WithGuildOnly())

	inv := baseInv("u1")
	inv.GuildID = ""
	rec := invoke(t, c, inv)
	if !strings.Contains(rec.lastMsg(), "tylko na serwerze") {
		t.Errorf("reply = %q, want guild-only refusal", rec.lastMsg())
	}
}

func TestCanModifyTrack(t *testing.T) {
	owner := track.Track{AddedByID: "u1"}
	if err := canModifyTrack(&Invocation{UserID: "u1"}, owner); err != nil {
		t.Errorf("owner = %v, want nil", err)
	}
	if err := canModifyTrack(&Invocation{UserID: "u2"}, owner); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("stranger = %v, want ErrPermissionDenied", err)
	}
	if err := canModifyTrack(&Invocation{UserID: "u2", IsAdmin: true}, owner); err != nil {
		t.Errorf("admin = %v, want nil", err)
	}
}
