package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/launchpad/common/models"
	"github.com/lyzr/launchpad/common/queue"
	"github.com/lyzr/launchpad/common/repository"
	"github.com/lyzr/launchpad/common/sourcehost"
	"github.com/lyzr/launchpad/common/storage"
)

// mockBlobRepo is an in-memory blobStore with a unique hash constraint
type mockBlobRepo struct {
	mu      sync.Mutex
	byHash  map[string]*models.Blob
	inserts int

	// raceWinner is inserted by another "process" right before the next Insert
	raceWinner *models.Blob
	insertErr  error
}

func newMockBlobRepo() *mockBlobRepo {
	return &mockBlobRepo{byHash: make(map[string]*models.Blob)}
}

func (m *mockBlobRepo) GetByHash(ctx context.Context, hash string) (*models.Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.byHash[hash]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("blob %s: %w", hash, models.ErrNotFound)
}

func (m *mockBlobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.byHash {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("blob %s: %w", id, models.ErrNotFound)
}

func (m *mockBlobRepo) Insert(ctx context.Context, blob *models.Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.raceWinner != nil {
		m.byHash[m.raceWinner.Hash] = m.raceWinner
		m.raceWinner = nil
	}
	if _, ok := m.byHash[blob.Hash]; ok {
		return models.ErrConflict
	}
	m.byHash[blob.Hash] = blob
	m.inserts++
	return nil
}

func (m *mockBlobRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

// mockBackend is an in-memory storage.Backend counting physical writes
type mockBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	saves   int
	saveErr error

	// when set, Save signals saveStarted and blocks until gate closes
	gate        chan struct{}
	saveStarted chan struct{}
}

func newMockBackend() *mockBackend {
	return &mockBackend{objects: make(map[string][]byte)}
}

func (m *mockBackend) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.gate != nil {
		select {
		case m.saveStarted <- struct{}{}:
		default:
		}
		select {
		case <-m.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.saves++
	return nil
}

func (m *mockBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockBackend) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *mockBackend) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// mockStore is the in-memory database behind every repository interface the
// services use. Snapshot commits are all-or-nothing.
type mockStore struct {
	mu          sync.Mutex
	apps        map[uuid.UUID]*models.App
	routes      map[uuid.UUID][]*models.Route
	schemes     map[uuid.UUID][]*models.AuthScheme
	variables   map[uuid.UUID][]*models.Variable
	deployments map[uuid.UUID]*models.Deployment
	files       map[uuid.UUID][]models.DeploymentFile
	artifacts   map[uuid.UUID]*models.Artifact
	jobs        map[uuid.UUID]*models.BuildJob

	commitErr     error
	failCommitFor map[uuid.UUID]bool
}

func newMockStore() *mockStore {
	return &mockStore{
		apps:          make(map[uuid.UUID]*models.App),
		routes:        make(map[uuid.UUID][]*models.Route),
		schemes:       make(map[uuid.UUID][]*models.AuthScheme),
		variables:     make(map[uuid.UUID][]*models.Variable),
		deployments:   make(map[uuid.UUID]*models.Deployment),
		files:         make(map[uuid.UUID][]models.DeploymentFile),
		artifacts:     make(map[uuid.UUID]*models.Artifact),
		jobs:          make(map[uuid.UUID]*models.BuildJob),
		failCommitFor: make(map[uuid.UUID]bool),
	}
}

func (m *mockStore) addApp(slug string) *models.App {
	m.mu.Lock()
	defer m.mu.Unlock()
	app := &models.App{
		ID:    uuid.New(),
		Slug:  slug,
		Name:  slug,
		State: models.AppActive,
		Build: models.BuildConfig{
			Branch:         "main",
			InstallCommand: "npm ci",
			BuildCommand:   "npm run build",
			OutputDir:      "dist",
		},
		CreatedAt: time.Now(),
	}
	m.apps[app.ID] = app
	return app
}

func (m *mockStore) addRoute(appID uuid.UUID, r *models.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.AppID = appID
	m.routes[appID] = append(m.routes[appID], r)
}

func (m *mockStore) app(id uuid.UUID) *models.App {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *m.apps[id]
	return &a
}

func (m *mockStore) filesOf(deploymentID uuid.UUID) []models.DeploymentFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DeploymentFile(nil), m.files[deploymentID]...)
}

// apps

type mockApps struct{ *mockStore }

func (m mockApps) GetByID(ctx context.Context, id uuid.UUID) (*models.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, fmt.Errorf("app %s: %w", id, models.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m mockApps) GetBySlug(ctx context.Context, slug string) (*models.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.Slug == slug {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("app %s: %w", slug, models.ErrNotFound)
}

func (m mockApps) ListWithoutActiveAPIDeployment(ctx context.Context) ([]*models.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.App
	for _, a := range m.apps {
		if a.ActiveAPIDeploymentID == nil && a.State != models.AppDeleted {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m mockApps) SetActiveDeployment(ctx context.Context, appID, deploymentID uuid.UUID, kind models.DeploymentType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setActive(appID, deploymentID, kind)
}

func (m *mockStore) setActive(appID, deploymentID uuid.UUID, kind models.DeploymentType) error {
	d, ok := m.deployments[deploymentID]
	if !ok || d.AppID != appID || d.Type != kind || d.Status != models.DeploymentReady {
		return fmt.Errorf("ready %s deployment %s: %w", kind, deploymentID, models.ErrNotFound)
	}
	a := m.apps[appID]
	if kind == models.DeploymentTypeSPA {
		a.ActiveSPADeploymentID = &deploymentID
	} else {
		a.ActiveAPIDeploymentID = &deploymentID
	}
	return nil
}

// routes, auth schemes and variables

type mockRoutes struct{ *mockStore }

func (m mockRoutes) ListPublishable(ctx context.Context, appID uuid.UUID) ([]*models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Route
	for _, r := range m.routes[appID] {
		if r.IsPublishable() {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockSchemes struct{ *mockStore }

func (m mockSchemes) ListEnabled(ctx context.Context, appID uuid.UUID) ([]*models.AuthScheme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuthScheme
	for _, s := range m.schemes[appID] {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockVariables struct{ *mockStore }

func (m mockVariables) ListByTargets(ctx context.Context, appID uuid.UUID, targets ...models.VariableTarget) ([]*models.Variable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Variable
	for _, v := range m.variables[appID] {
		for _, t := range targets {
			if v.Target == t {
				out = append(out, v)
				break
			}
		}
	}
	return out, nil
}

// deployments and manifests

type mockDeployments struct{ *mockStore }

func (m mockDeployments) GetByID(ctx context.Context, id uuid.UUID) (*models.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, models.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (m mockDeployments) GetByBuildJob(ctx context.Context, buildJobID uuid.UUID) (*models.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deployments {
		if d.BuildJobID != nil && *d.BuildJobID == buildJobID && d.Type == models.DeploymentTypeSPA {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("deployment for build %s: %w", buildJobID, models.ErrNotFound)
}

func (m mockDeployments) ListByApp(ctx context.Context, appID uuid.UUID, limit int) ([]*models.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Deployment
	for _, d := range m.deployments {
		if d.AppID == appID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m mockDeployments) AttachArtifact(ctx context.Context, deploymentID, artifactID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[deploymentID]
	if !ok {
		return fmt.Errorf("deployment %s: %w", deploymentID, models.ErrNotFound)
	}
	if d.Status != models.DeploymentBuilding {
		return models.ErrInvalidTransition
	}
	d.ArtifactID = &artifactID
	return nil
}

type mockFiles struct{ *mockStore }

func (m mockFiles) ListByDeployment(ctx context.Context, deploymentID uuid.UUID) ([]*models.DeploymentFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.DeploymentFile
	for i := range m.files[deploymentID] {
		f := m.files[deploymentID][i]
		out = append(out, &f)
	}
	return out, nil
}

func (m mockFiles) GetByPath(ctx context.Context, deploymentID uuid.UUID, path string) (*models.DeploymentFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files[deploymentID] {
		if f.Path == path {
			cp := f
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("file %s: %w", path, models.ErrNotFound)
}

type mockSnapshots struct{ *mockStore }

func (m mockSnapshots) CommitAPISnapshot(ctx context.Context, d *models.Deployment, files []models.DeploymentFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil || m.failCommitFor[d.AppID] {
		if m.commitErr != nil {
			return m.commitErr
		}
		return errors.New("connection reset")
	}
	if _, ok := m.apps[d.AppID]; !ok {
		return fmt.Errorf("app %s: %w", d.AppID, models.ErrNotFound)
	}

	sealed := *d
	sealed.Status = models.DeploymentReady
	m.deployments[d.ID] = &sealed
	m.files[d.ID] = append([]models.DeploymentFile(nil), files...)
	if err := m.setActive(d.AppID, d.ID, models.DeploymentTypeAPI); err != nil {
		return err
	}

	d.Status = models.DeploymentReady
	d.Version++
	return nil
}

// artifacts

type mockArtifacts struct{ *mockStore }

func (m mockArtifacts) Create(ctx context.Context, a *models.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[a.ID] = a
	return nil
}

func (m mockArtifacts) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", id, models.ErrNotFound)
	}
	return a, nil
}

// build jobs, mirroring the SQL guards of BuildJobRepository

type mockJobs struct{ *mockStore }

func (m mockJobs) CreateWithPlaceholder(ctx context.Context, job *models.BuildJob, placeholder *models.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	d := *placeholder
	m.deployments[placeholder.ID] = &d
	return nil
}

func (m mockJobs) GetByID(ctx context.Context, id uuid.UUID) (*models.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("build %s: %w", id, models.ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (m mockJobs) ListByApp(ctx context.Context, appID uuid.UUID, limit int) ([]*models.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.BuildJob
	for _, j := range m.jobs {
		if j.AppID == appID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m mockJobs) transition(id uuid.UUID, next models.BuildJobStatus) (*models.BuildJob, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("build %s: %w", id, models.ErrNotFound)
	}
	if !j.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("build %s %s -> %s: %w", id, j.Status, next, models.ErrInvalidTransition)
	}
	j.Status = next
	return j, nil
}

func (m mockJobs) MarkStarted(ctx context.Context, id uuid.UUID, containerID string, at time.Time) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.transition(id, models.BuildStarted)
	if err != nil {
		return uuid.Nil, err
	}
	j.ContainerID = &containerID
	j.StartedAt = &at
	return j.AppID, nil
}

func (m mockJobs) placeholder(buildID uuid.UUID) *models.Deployment {
	for _, d := range m.deployments {
		if d.BuildJobID != nil && *d.BuildJobID == buildID {
			return d
		}
	}
	return nil
}

func (m mockJobs) Complete(ctx context.Context, id uuid.UUID, at time.Time) (*repository.BuildOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.transition(id, models.BuildDone)
	if err != nil {
		return nil, err
	}
	j.FinishedAt = &at

	outcome := &repository.BuildOutcome{AppID: j.AppID}
	d := m.placeholder(id)
	if d == nil {
		return outcome, nil
	}
	outcome.DeploymentID = &d.ID
	if d.ArtifactID == nil {
		d.Status = models.DeploymentFailed
		return outcome, nil
	}
	d.Status = models.DeploymentReady
	if err := m.setActive(j.AppID, d.ID, models.DeploymentTypeSPA); err != nil {
		return nil, err
	}
	outcome.Promoted = true
	return outcome, nil
}

func (m mockJobs) Fail(ctx context.Context, id uuid.UUID, at time.Time) (*repository.BuildOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.transition(id, models.BuildFailed)
	if err != nil {
		return nil, err
	}
	j.FinishedAt = &at

	outcome := &repository.BuildOutcome{AppID: j.AppID}
	if d := m.placeholder(id); d != nil && !d.Status.IsTerminal() {
		d.Status = models.DeploymentFailed
		outcome.DeploymentID = &d.ID
	}
	return outcome, nil
}

// collaborators

type mockPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (m *mockPublisher) Publish(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, slug)
	return m.err
}

type mockInvalidator struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (m *mockInvalidator) InvalidateByID(ctx context.Context, appID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, appID)
	return nil
}

type mockNotifier struct {
	mu       sync.Mutex
	messages []models.BuildStatusMessage
}

func (m *mockNotifier) Notify(ctx context.Context, msg models.BuildStatusMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockNotifier) statuses() []models.BuildJobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.BuildJobStatus
	for _, msg := range m.messages {
		out = append(out, msg.Status)
	}
	return out
}

type mockCommits struct {
	commit *sourcehost.Commit
	err    error
}

func (m *mockCommits) LatestCommit(ctx context.Context, cloneURL, branch string) (*sourcehost.Commit, error) {
	return m.commit, m.err
}

// mockQueue records published messages; it never delivers them
type mockQueue struct {
	mu         sync.Mutex
	published  map[string][][]byte
	publishErr error
}

func newMockQueue() *mockQueue {
	return &mockQueue{published: make(map[string][][]byte)}
}

func (m *mockQueue) Publish(ctx context.Context, topic, key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published[topic] = append(m.published[topic], message)
	return nil
}

func (m *mockQueue) Subscribe(ctx context.Context, topic string, handler queue.MessageHandler) error {
	return nil
}

func (m *mockQueue) Close() error { return nil }
