package usuario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/versusesportes/api/internal/apperr"
	"github.com/versusesportes/api/internal/auth"
)

type stubUserRepo struct {
	usuarios map[int64]*Usuario
	perfis   map[int64]*PerfilUsuario
	equipes  map[int64]*Equipe
	vinculos map[int64][]Vinculo

	nextUserID   int64
	nextPerfilID int64
	lastFilters  *ListFilters
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		usuarios:     make(map[int64]*Usuario),
		perfis:       make(map[int64]*PerfilUsuario),
		equipes:      make(map[int64]*Equipe),
		vinculos:     make(map[int64][]Vinculo),
		nextUserID:   100,
		nextPerfilID: 500,
	}
}

func (r *stubUserRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, r)
}

func (r *stubUserRepo) GetByID(_ context.Context, id int64) (*Usuario, error) {
	if u, ok := r.usuarios[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*Usuario, error) {
	for _, u := range r.usuarios {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *stubUserRepo) Create(_ context.Context, nome, email, senhaHash string) (*Usuario, error) {
	r.nextUserID++
	u := &Usuario{ID: r.nextUserID, Nome: nome, Email: email, SenhaHash: senhaHash, Status: StatusAtivo}
	r.usuarios[u.ID] = u
	return u, nil
}

func (r *stubUserRepo) CreatePerfil(_ context.Context, usuarioID int64, papel string, organizacaoID, equipeID *int64) (*PerfilUsuario, error) {
	r.nextPerfilID++
	p := &PerfilUsuario{ID: r.nextPerfilID, UsuarioID: usuarioID, Papel: papel, OrganizacaoID: organizacaoID, EquipeID: equipeID}
	r.perfis[usuarioID] = p
	return p, nil
}

func (r *stubUserRepo) GetPerfilByUsuario(_ context.Context, usuarioID int64) (*PerfilUsuario, error) {
	if p, ok := r.perfis[usuarioID]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (r *stubUserRepo) GetEquipeByID(_ context.Context, id int64) (*Equipe, error) {
	if e, ok := r.equipes[id]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

func (r *stubUserRepo) Update(_ context.Context, id int64, changes UsuarioChanges) (*Usuario, error) {
	u, ok := r.usuarios[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := *u
	if changes.Nome != nil {
		updated.Nome = *changes.Nome
	}
	if changes.Email != nil {
		updated.Email = *changes.Email
	}
	if changes.SenhaHash != nil {
		updated.SenhaHash = *changes.SenhaHash
	}
	if changes.Status != nil {
		updated.Status = *changes.Status
	}
	r.usuarios[id] = &updated
	return &updated, nil
}

func (r *stubUserRepo) UpdatePerfil(_ context.Context, perfilID int64, changes PerfilChanges) (*PerfilUsuario, error) {
	for _, p := range r.perfis {
		if p.ID != perfilID {
			continue
		}
		updated := *p
		if changes.Papel != nil {
			updated.Papel = *changes.Papel
		}
		if changes.SetOrganizacao {
			updated.OrganizacaoID = changes.OrganizacaoID
		}
		if changes.SetEquipe {
			updated.EquipeID = changes.EquipeID
		}
		r.perfis[p.UsuarioID] = &updated
		return &updated, nil
	}
	return nil, ErrNotFound
}

func (r *stubUserRepo) List(_ context.Context, filters ListFilters) ([]UsuarioResumo, error) {
	r.lastFilters = &filters
	return nil, nil
}

func (r *stubUserRepo) ListVinculos(_ context.Context, usuarioID int64) ([]Vinculo, error) {
	return r.vinculos[usuarioID], nil
}

func (r *stubUserRepo) UpdateLoginControl(_ context.Context, id int64, failedAttempts int, lockedUntil *time.Time) error {
	u, ok := r.usuarios[id]
	if !ok {
		return ErrNotFound
	}
	updated := *u
	updated.FailedAttempts = failedAttempts
	updated.LockedUntil = lockedUntil
	r.usuarios[id] = &updated
	return nil
}

// stubRedis guarda os pares em memória, sem honrar TTL.
type stubRedis struct {
	store map[string]string
}

func newStubRedis() *stubRedis {
	return &stubRedis{store: make(map[string]string)}
}

func (r *stubRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	r.store[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (r *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := r.store[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (r *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, k := range keys {
		if _, ok := r.store[k]; ok {
			delete(r.store, k)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func newTestService(repo *stubUserRepo, rds *stubRedis) *Service {
	return &Service{
		repo:       repo,
		redis:      rds,
		jwt:        auth.NewJWTManager("segredo-de-teste-bem-longo", time.Hour),
		refreshTTL: time.Hour,
	}
}

var (
	senhaFixture     = "senha123"
	senhaHashFixture string
	senhaHashOnce    sync.Once
)

func hashFixture(t *testing.T) string {
	t.Helper()
	senhaHashOnce.Do(func() {
		h, err := auth.Hash(senhaFixture)
		if err != nil {
			t.Fatalf("hash da senha de teste: %v", err)
		}
		senhaHashFixture = h
	})
	return senhaHashFixture
}

func seedUsuario(t *testing.T, repo *stubUserRepo, id int64, email, papel string, orgID, equipeID *int64) *Usuario {
	t.Helper()
	u := &Usuario{ID: id, Nome: "Usuário " + email, Email: email, SenhaHash: hashFixture(t), Status: StatusAtivo}
	repo.usuarios[id] = u
	repo.perfis[id] = &PerfilUsuario{ID: id + 1000, UsuarioID: id, Papel: papel, OrganizacaoID: orgID, EquipeID: equipeID}
	repo.vinculos[id] = []Vinculo{{Papel: papel}}
	return u
}

func assertUserKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("esperava *apperr.Error, veio %v", err)
	}
	if appErr.Kind != kind {
		t.Fatalf("kind = %d, esperava %d (msg: %s)", appErr.Kind, kind, appErr.Message)
	}
}

func ptrInt64(v int64) *int64 { return &v }

func ptrString(v string) *string { return &v }

func TestCreateUsuarioORGSomenteADM(t *testing.T) {
	svc := newTestService(newStubUserRepo(), newStubRedis())

	_, err := svc.Create(context.Background(), CreateInput{
		Nome:  "Carlos Lima",
		Email: "carlos@liga.com.br",
		Senha: "senha123",
		Papel: PapelORG,
	}, Requester{Role: PapelTEC})
	assertUserKind(t, err, apperr.KindForbidden)
}

func TestCreateUsuarioORGComoADM(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, newStubRedis())

	result, err := svc.Create(context.Background(), CreateInput{
		Nome:          "Carlos Lima",
		Email:         "Carlos@Liga.com.br",
		Senha:         "senha123",
		Papel:         PapelORG,
		OrganizacaoID: ptrInt64(7),
	}, Requester{Role: PapelADM})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Perfil.Papel != PapelORG {
		t.Errorf("papel = %q", result.Perfil.Papel)
	}
	if result.Usuario.Email != "carlos@liga.com.br" {
		t.Errorf("email = %q, esperava normalização para minúsculas", result.Usuario.Email)
	}
	if result.Usuario.Status != StatusAtivo {
		t.Errorf("status = %q", result.Usuario.Status)
	}
}

func TestCreateUsuarioTECSemEquipe(t *testing.T) {
	svc := newTestService(newStubUserRepo(), newStubRedis())

	_, err := svc.Create(context.Background(), CreateInput{
		Nome:  "Ana Costa",
		Email: "ana@liga.com.br",
		Senha: "senha123",
		Papel: PapelTEC,
	}, Requester{Role: PapelADM})
	assertUserKind(t, err, apperr.KindInvalidInput)
}

func TestCreateUsuarioEmailDuplicado(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	svc := newTestService(repo, newStubRedis())

	_, err := svc.Create(context.Background(), CreateInput{
		Nome:  "Outra Ana",
		Email: "ana@liga.com.br",
		Senha: "senha123",
		Papel: PapelADM,
	}, Requester{Role: PapelADM})
	assertUserKind(t, err, apperr.KindConflict)
}

func TestCreateUsuarioORGCriaTECDeOutraOrganizacao(t *testing.T) {
	repo := newStubUserRepo()
	repo.equipes[10] = &Equipe{ID: 10, Nome: "Tigres", OrganizacaoID: 99}
	svc := newTestService(repo, newStubRedis())

	_, err := svc.Create(context.Background(), CreateInput{
		Nome:     "Ana Costa",
		Email:    "ana@liga.com.br",
		Senha:    "senha123",
		Papel:    PapelTEC,
		EquipeID: ptrInt64(10),
	}, Requester{Role: PapelORG, OrganizacaoID: ptrInt64(7)})
	assertUserKind(t, err, apperr.KindForbidden)
}

func TestCreateUsuarioORGCriaTECDaPropriaOrganizacao(t *testing.T) {
	repo := newStubUserRepo()
	repo.equipes[10] = &Equipe{ID: 10, Nome: "Tigres", OrganizacaoID: 7}
	svc := newTestService(repo, newStubRedis())

	result, err := svc.Create(context.Background(), CreateInput{
		Nome:          "Ana Costa",
		Email:         "ana@liga.com.br",
		Senha:         "senha123",
		Papel:         PapelTEC,
		OrganizacaoID: ptrInt64(7),
		EquipeID:      ptrInt64(10),
	}, Requester{Role: PapelORG, OrganizacaoID: ptrInt64(7)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Perfil.EquipeID == nil || *result.Perfil.EquipeID != 10 {
		t.Errorf("equipeId = %v", result.Perfil.EquipeID)
	}
}

func TestCreateUsuarioSemRequester(t *testing.T) {
	svc := newTestService(newStubUserRepo(), newStubRedis())

	_, err := svc.Create(context.Background(), CreateInput{
		Nome:  "Ana Costa",
		Email: "ana@liga.com.br",
		Senha: "senha123",
		Papel: PapelADM,
	}, Requester{})
	assertUserKind(t, err, apperr.KindUnauthorized)
}

func TestAuthenticateSucesso(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	rds := newStubRedis()
	svc := newTestService(repo, rds)

	result, err := svc.Authenticate(context.Background(), LoginInput{Email: "ana@liga.com.br", Senha: senhaFixture})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.Token == "" || result.RefreshToken == "" {
		t.Error("tokens vazios")
	}
	if len(result.Perfis) != 1 || result.Perfis[0].Papel != PapelADM {
		t.Errorf("perfis = %v", result.Perfis)
	}

	key := auth.RefreshRedisKey(auth.HashRefreshToken(result.RefreshToken))
	if rds.store[key] != "1" {
		t.Errorf("refresh não persistido: %v", rds.store)
	}
}

func TestAuthenticateAceitaCampoPassword(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	svc := newTestService(repo, newStubRedis())

	if _, err := svc.Authenticate(context.Background(), LoginInput{Email: "ana@liga.com.br", Password: senhaFixture}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
}

func TestAuthenticateContaInativa(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	u.Status = StatusInativo
	svc := newTestService(repo, newStubRedis())

	_, err := svc.Authenticate(context.Background(), LoginInput{Email: "ana@liga.com.br", Senha: senhaFixture})
	assertUserKind(t, err, apperr.KindForbidden)
}

func TestAuthenticateEmailInexistente(t *testing.T) {
	svc := newTestService(newStubUserRepo(), newStubRedis())

	_, err := svc.Authenticate(context.Background(), LoginInput{Email: "ninguem@liga.com.br", Senha: senhaFixture})
	assertUserKind(t, err, apperr.KindInvalidCredentials)
}

func TestAuthenticateBloqueiaAposQuartaFalha(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	svc := newTestService(repo, newStubRedis())

	errada := LoginInput{Email: "ana@liga.com.br", Senha: "errada123"}
	for i := 0; i < maxFailedAttempts; i++ {
		_, err := svc.Authenticate(context.Background(), errada)
		assertUserKind(t, err, apperr.KindInvalidCredentials)
	}

	if repo.usuarios[1].LockedUntil == nil {
		t.Fatal("esperava conta bloqueada após a quarta falha")
	}

	// Mesmo a senha correta é recusada durante a janela de bloqueio.
	_, err := svc.Authenticate(context.Background(), LoginInput{Email: "ana@liga.com.br", Senha: senhaFixture})
	assertUserKind(t, err, apperr.KindAccountLocked)
}

func TestAuthenticateNaoBloqueiaAntesDaQuartaFalha(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	svc := newTestService(repo, newStubRedis())

	errada := LoginInput{Email: "ana@liga.com.br", Senha: "errada123"}
	for i := 0; i < maxFailedAttempts-1; i++ {
		_, err := svc.Authenticate(context.Background(), errada)
		assertUserKind(t, err, apperr.KindInvalidCredentials)
	}

	if repo.usuarios[1].LockedUntil != nil {
		t.Error("conta não deveria estar bloqueada com três falhas")
	}
	if repo.usuarios[1].FailedAttempts != maxFailedAttempts-1 {
		t.Errorf("failedAttempts = %d", repo.usuarios[1].FailedAttempts)
	}
}

func TestAuthenticateDesbloqueiaAposJanela(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	expirado := time.Now().UTC().Add(-time.Minute)
	u.FailedAttempts = maxFailedAttempts
	u.LockedUntil = &expirado
	svc := newTestService(repo, newStubRedis())

	result, err := svc.Authenticate(context.Background(), LoginInput{Email: "ana@liga.com.br", Senha: senhaFixture})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.Token == "" {
		t.Error("token vazio")
	}
	if repo.usuarios[1].FailedAttempts != 0 || repo.usuarios[1].LockedUntil != nil {
		t.Error("login bem-sucedido deveria zerar o controle de falhas")
	}
}

func TestListUsuariosNaoAdminForcaAtivo(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, newStubRedis())

	if _, err := svc.List(context.Background(), ListFilters{Status: StatusInativo}, Requester{Role: PapelORG}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.lastFilters.Status != StatusAtivo {
		t.Errorf("status = %q, esperava ativo forçado", repo.lastFilters.Status)
	}
}

func TestListUsuariosADMPodeVerInativos(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, newStubRedis())

	if _, err := svc.List(context.Background(), ListFilters{Status: StatusInativo}, Requester{Role: PapelADM}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.lastFilters.Status != StatusInativo {
		t.Errorf("status = %q", repo.lastFilters.Status)
	}
}

func TestListUsuariosADMStatusInvalidoIgnorado(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, newStubRedis())

	if _, err := svc.List(context.Background(), ListFilters{Status: "qualquer"}, Requester{Role: PapelADM}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.lastFilters.Status != "" {
		t.Errorf("status = %q, esperava filtro vazio", repo.lastFilters.Status)
	}
}

func TestUpdateUsuarioProprioStatus(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	svc := newTestService(repo, newStubRedis())

	_, err := svc.Update(context.Background(), 1, UpdateInput{Status: ptrString(StatusInativo)},
		Requester{ID: ptrInt64(1), Role: PapelADM})
	assertUserKind(t, err, apperr.KindForbidden)
}

func TestUpdateUsuarioSemAlteracoes(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	svc := newTestService(repo, newStubRedis())

	_, err := svc.Update(context.Background(), 1, UpdateInput{Nome: &u.Nome}, Requester{Role: PapelADM})
	assertUserKind(t, err, apperr.KindNoOpUpdate)
}

func TestUpdateUsuarioSaiDeTECLimpaEquipe(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelTEC, ptrInt64(7), ptrInt64(10))
	svc := newTestService(repo, newStubRedis())

	result, err := svc.Update(context.Background(), 1, UpdateInput{Papel: ptrString(PapelADM)}, Requester{Role: PapelADM})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if result.Perfil.Papel != PapelADM {
		t.Errorf("papel = %q", result.Perfil.Papel)
	}
	if result.Perfil.EquipeID != nil {
		t.Errorf("equipeId = %v, esperava nil ao deixar TEC", result.Perfil.EquipeID)
	}
}

func TestUpdateUsuarioPapelORGSomenteADM(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelTEC, ptrInt64(7), ptrInt64(10))
	svc := newTestService(repo, newStubRedis())

	_, err := svc.Update(context.Background(), 1, UpdateInput{Papel: ptrString(PapelORG)},
		Requester{Role: PapelORG, OrganizacaoID: ptrInt64(7)})
	assertUserKind(t, err, apperr.KindForbidden)
}

func TestUpdateUsuarioORGStatusDeTECDeOutraOrganizacao(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelTEC, ptrInt64(99), ptrInt64(10))
	svc := newTestService(repo, newStubRedis())

	_, err := svc.Update(context.Background(), 1, UpdateInput{Status: ptrString(StatusInativo)},
		Requester{ID: ptrInt64(2), Role: PapelORG, OrganizacaoID: ptrInt64(7)})
	assertUserKind(t, err, apperr.KindForbidden)
}

func TestUpdateUsuarioORGStatusDeTECDaPropriaOrganizacao(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelTEC, ptrInt64(7), ptrInt64(10))
	svc := newTestService(repo, newStubRedis())

	result, err := svc.Update(context.Background(), 1, UpdateInput{Status: ptrString(StatusInativo)},
		Requester{ID: ptrInt64(2), Role: PapelORG, OrganizacaoID: ptrInt64(7)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if result.Usuario.Status != StatusInativo {
		t.Errorf("status = %q", result.Usuario.Status)
	}
}

func TestUpdateUsuarioEmailDuplicado(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	seedUsuario(t, repo, 2, "carlos@liga.com.br", PapelADM, nil, nil)
	svc := newTestService(repo, newStubRedis())

	_, err := svc.Update(context.Background(), 2, UpdateInput{Email: ptrString("ana@liga.com.br")},
		Requester{Role: PapelADM})
	assertUserKind(t, err, apperr.KindConflict)
}

func TestUpdateUsuarioInexistente(t *testing.T) {
	svc := newTestService(newStubUserRepo(), newStubRedis())

	_, err := svc.Update(context.Background(), 42, UpdateInput{Nome: ptrString("Novo Nome")},
		Requester{Role: PapelADM})
	assertUserKind(t, err, apperr.KindNotFound)
}

func TestRefreshRotacionaToken(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	rds := newStubRedis()
	svc := newTestService(repo, rds)

	login, err := svc.Authenticate(context.Background(), LoginInput{Email: "ana@liga.com.br", Senha: senhaFixture})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	result, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.RefreshToken == login.RefreshToken {
		t.Error("refresh deveria rotacionar o token")
	}

	// O token usado foi revogado na rotação.
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	assertUserKind(t, err, apperr.KindUnauthorized)
}

func TestRefreshTokenDesconhecido(t *testing.T) {
	svc := newTestService(newStubUserRepo(), newStubRedis())

	_, err := svc.Refresh(context.Background(), "token-desconhecido")
	assertUserKind(t, err, apperr.KindUnauthorized)
}

func TestLogoutRevogaRefresh(t *testing.T) {
	repo := newStubUserRepo()
	seedUsuario(t, repo, 1, "ana@liga.com.br", PapelADM, nil, nil)
	rds := newStubRedis()
	svc := newTestService(repo, rds)

	login, err := svc.Authenticate(context.Background(), LoginInput{Email: "ana@liga.com.br", Senha: senhaFixture})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := svc.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(rds.store) != 0 {
		t.Errorf("store = %v, esperava refresh revogado", rds.store)
	}

	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	assertUserKind(t, err, apperr.KindUnauthorized)
}
