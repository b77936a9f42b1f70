package domain

// Status é o estado de uma aposta na máquina de estados.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusCodeShared Status = "CODE_SHARED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusDisputed   Status = "DISPUTED"
)

// transitions lista as transições legais a partir de cada estado.
// DISPUTED -> COMPLETED/CANCELLED só acontece via override administrativo.
var transitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusCodeShared, StatusCancelled},
	StatusCodeShared: {StatusCompleted, StatusCancelled, StatusDisputed},
	StatusDisputed:   {StatusCompleted, StatusCancelled},
}

// CanTransition informa se from -> to é permitido.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal indica estados imutáveis.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive indica apostas que ainda travam pontos do usuário.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCodeShared, StatusDisputed:
		return true
	}
	return false
}

// Valid rejeita valores desconhecidos vindos do banco.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCodeShared, StatusCompleted, StatusCancelled, StatusDisputed:
		return true
	}
	return false
}
