package usuario

import (
	"time"

	"github.com/versusesportes/api/internal/organizacao"
)

// Status possíveis de um usuário.
const (
	StatusAtivo   = "ativo"
	StatusInativo = "inativo"
)

// Papéis aceitos em um perfil.
const (
	PapelADM = "ADM"
	PapelORG = "ORG"
	PapelTEC = "TEC"
)

// Usuario representa um titular de conta. SenhaHash nunca é serializado.
type Usuario struct {
	ID             int64
	Nome           string
	Email          string
	SenhaHash      string
	Status         string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PerfilUsuario vincula o usuário a um papel e, opcionalmente, a uma
// organização e a uma equipe. A regra de negócio admite um único perfil
// por usuário.
type PerfilUsuario struct {
	ID            int64     `json:"id"`
	UsuarioID     int64     `json:"usuarioId"`
	Papel         string    `json:"papel"`
	OrganizacaoID *int64    `json:"organizacaoId"`
	EquipeID      *int64    `json:"equipeId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Equipe é entidade externa a este módulo; lida apenas para checar vínculo.
type Equipe struct {
	ID            int64  `json:"id"`
	Nome          string `json:"nome"`
	OrganizacaoID int64  `json:"organizacaoId"`
}

// Requester é a identidade declarada do solicitante, escopada à requisição.
// Nunca vira estado global: é passada como argumento a cada operação.
type Requester struct {
	ID            *int64
	Role          string
	OrganizacaoID *int64
	EquipeID      *int64
}

// UsuarioPublico é a projeção sem hash devolvida pela API.
type UsuarioPublico struct {
	ID        int64     `json:"id"`
	Nome      string    `json:"nome"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// UsuarioResumo é a projeção usada na listagem.
type UsuarioResumo struct {
	ID     int64  `json:"id"`
	Nome   string `json:"nome"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// Vinculo agrega o papel com a organização e a equipe associadas.
type Vinculo struct {
	Papel       string                   `json:"papel"`
	Organizacao *organizacao.Organizacao `json:"organizacao"`
	Equipe      *Equipe                  `json:"equipe"`
}

// CreateInput agrupa os campos do cadastro de usuário.
type CreateInput struct {
	Nome          string
	Email         string
	Senha         string
	Papel         string
	OrganizacaoID *int64
	EquipeID      *int64
}

// CreateResult devolve usuário sanitizado e o perfil criado.
type CreateResult struct {
	Usuario UsuarioPublico `json:"usuario"`
	Perfil  PerfilPublico  `json:"perfil"`
}

// PerfilPublico é a projeção do perfil devolvida pela API.
type PerfilPublico struct {
	ID            int64  `json:"id"`
	Papel         string `json:"papel"`
	OrganizacaoID *int64 `json:"organizacaoId"`
	EquipeID      *int64 `json:"equipeId"`
}

// LoginInput aceita 'senha' e 'password' como sinônimos.
type LoginInput struct {
	Email    string
	Senha    string
	Password string
}

// LoginResult é o retorno do login e do refresh.
type LoginResult struct {
	User         UsuarioPublico `json:"user"`
	Perfis       []Vinculo      `json:"perfis"`
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
}

// ListFilters descreve filtros da listagem de usuários.
type ListFilters struct {
	Nome   string
	Status string
}

// UpdateInput usa ponteiros para distinguir campo ausente de campo vazio.
type UpdateInput struct {
	Nome          *string
	Email         *string
	Senha         *string
	Status        *string
	Papel         *string
	OrganizacaoID *int64
	EquipeID      *int64
}

// UpdateResult devolve usuário e perfil após a edição.
type UpdateResult struct {
	Usuario UsuarioPublico `json:"usuario"`
	Perfil  PerfilPublico  `json:"perfil"`
}

// UsuarioChanges são as colunas de usuário aplicadas na edição.
type UsuarioChanges struct {
	Nome      *string
	Email     *string
	SenhaHash *string
	Status    *string
}

// PerfilChanges são as colunas de perfil aplicadas na edição; os pares
// Set*/valor permitem gravar NULL explicitamente.
type PerfilChanges struct {
	Papel          *string
	SetOrganizacao bool
	OrganizacaoID  *int64
	SetEquipe      bool
	EquipeID       *int64
}

func publicUsuario(u *Usuario) UsuarioPublico {
	return UsuarioPublico{
		ID:        u.ID,
		Nome:      u.Nome,
		Email:     u.Email,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

func publicPerfil(p *PerfilUsuario) PerfilPublico {
	return PerfilPublico{
		ID:            p.ID,
		Papel:         p.Papel,
		OrganizacaoID: p.OrganizacaoID,
		EquipeID:      p.EquipeID,
	}
}
