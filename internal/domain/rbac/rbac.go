// Пакет rbac — определение роли пользователя Records UI по группам IdP.
// viewer видит список записей, editor дополнительно создаёт, изменяет
// и удаляет записи.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
)

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleViewer: 1,
	RoleEditor: 2,
}

// maxRole возвращает роль с максимальными привилегиями из двух.
func maxRole(a, b string) string {
	if roleWeight[a] >= roleWeight[b] {
		return a
	}
	return b
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		highest = maxRole(highest, r)
	}
	return highest
}

// MapGroupsToRole определяет роль по группам пользователя.
// Группы IdP могут приходить с ведущим "/" (Keycloak full path) — он отбрасывается.
// Если ни одна группа не совпала — возвращает пустую строку.
func MapGroupsToRole(groups []string, editorGroups, viewerGroups []string) string {
	editorSet := toSet(editorGroups)
	viewerSet := toSet(viewerGroups)

	var roles []string
	for _, g := range groups {
		g = trimGroupPath(g)
		if editorSet[g] {
			roles = append(roles, RoleEditor)
		}
		if viewerSet[g] {
			roles = append(roles, RoleViewer)
		}
	}

	return HighestRole(roles)
}

// CanMutate сообщает, может ли роль изменять записи.
func CanMutate(role string) bool {
	return role == RoleEditor
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

func trimGroupPath(g string) string {
	if len(g) > 0 && g[0] == '/' {
		return g[1:]
	}
	return g
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[trimGroupPath(item)] = true
	}
	return s
}
