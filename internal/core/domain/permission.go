package domain

import (
	"fmt"
	"strings"
)

// Module is a business area permissions are scoped to.
type Module string

const (
	ModuleRegistry    Module = "cadastros_essenciais"
	ModuleService     Module = "atendimento"
	ModuleQuotes      Module = "orcamentacao"
	ModuleInventory   Module = "estoque"
	ModuleCompounding Module = "manipulacao"
	ModuleFinance     Module = "financeiro"
	ModuleFiscal      Module = "fiscal"
	ModulePointOfSale Module = "pdv"
	ModuleUsers       Module = "usuarios_permissoes"
	ModuleReports     Module = "relatorios"
	ModuleSettings    Module = "configuracoes"
)

// Action is an operation inside a module.
type Action string

const (
	ActionCreate  Action = "criar"
	ActionRead    Action = "ler"
	ActionUpdate  Action = "editar"
	ActionDelete  Action = "excluir"
	ActionApprove Action = "aprovar"
	ActionExport  Action = "exportar"
)

// Level is the data-scope breadth of a granted action.
type Level string

const (
	LevelOwn  Level = "OWN"
	LevelTeam Level = "TEAM"
	LevelAll  Level = "ALL"
)

// ParseLevel normalizes a stored level. Both the canonical names and the
// legacy ones (proprio, setor, todos) are accepted; anything else,
// including an empty value, resolves to LevelAll because sources that do
// not model levels grant module-wide access.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OWN", "PROPRIO":
		return LevelOwn
	case "TEAM", "SETOR":
		return LevelTeam
	default:
		return LevelAll
	}
}

// Permission grants one action on one module at a given level.
type Permission struct {
	Module  Module `json:"module"`
	Action  Action `json:"action"`
	Level   Level  `json:"level"`
	Allowed bool   `json:"allowed"`
}

// ValidatePermissions enforces that a permission set holds at most one
// entry per (module, action) pair.
func ValidatePermissions(perms []Permission) error {
	seen := make(map[[2]string]struct{}, len(perms))
	for _, p := range perms {
		k := [2]string{string(p.Module), string(p.Action)}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s/%s", ErrDuplicatePermission, p.Module, p.Action)
		}
		seen[k] = struct{}{}
	}
	return nil
}
