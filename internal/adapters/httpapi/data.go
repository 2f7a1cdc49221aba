package httpapi

import (
	"net/http"
	"strings"

	"agent-radar/internal/domain"
	httpinfra "agent-radar/internal/infra/http"
	"agent-radar/internal/usecase/digest"
)

const skillsSourceName = "skills.sh"

type listResponse[T any] struct {
	List []T `json:"list"`
}

func newListResponse[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{List: items}
}

// listTrending отдаёт репозитории за период weekly, lastweek или monthly.
func (a *API) listTrending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a.writeTrending(w, r, domain.TrendingQuery{
		Period:   domain.NormalizeTrendingPeriod(q.Get("period")),
		Language: strings.TrimSpace(q.Get("language")),
		Search:   strings.TrimSpace(q.Get("q")),
		Limit:    queryInt(r, "limit", 20, 100),
	})
}

// listWeekly отдаёт короткую подборку из последнего снимка.
func (a *API) listWeekly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a.writeTrending(w, r, domain.TrendingQuery{
		Period:   domain.TrendingPeriodWeekly,
		Language: strings.TrimSpace(q.Get("language")),
		Search:   strings.TrimSpace(q.Get("q")),
		Limit:    queryInt(r, "limit", 6, 50),
	})
}

func (a *API) writeTrending(w http.ResponseWriter, r *http.Request, query domain.TrendingQuery) {
	items, err := a.deps.Data.SearchTrending(r.Context(), query)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, newListResponse(items))
}

// listAiItems отдаёт записи только из лент по умолчанию: пользовательские ленты приватны.
// category фильтрует по классификации источника, неизвестное значение не фильтрует.
func (a *API) listAiItems(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 100)
	items, err := a.deps.Data.SearchAiItems(r.Context(), domain.AiItemQuery{
		SourceURLs: domain.DefaultFeedURLs(),
		Search:     strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:      limit * 2,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	switch category {
	case digest.CategoryResearch, digest.CategoryProduct, digest.CategoryOpenSource:
	default:
		category = ""
	}
	out := make([]domain.AiItem, 0, limit)
	for _, item := range items {
		if category != "" && digest.ClassifyAiItem(item.Source) != category {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	httpinfra.WriteJSON(w, newListResponse(out))
}

type skillView struct {
	domain.SkillItem
	SkillURL *string `json:"skill_url"`
	RepoURL  *string `json:"repo_url"`
}

type skillsResponse struct {
	List         []skillView           `json:"list"`
	ListType     domain.SkillsListType `json:"list_type"`
	SnapshotDate *string               `json:"snapshot_date"`
	Total        int                   `json:"total"`
	Source       string                `json:"source"`
}

// listSkills отдаёт страницу последнего рейтинга skills.sh с датой снимка и числом совпадений.
func (a *API) listSkills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.deps.Data.SearchSkills(r.Context(), domain.SkillsQuery{
		ListType: domain.NormalizeSkillsListType(q.Get("list")),
		Search:   strings.TrimSpace(q.Get("q")),
		Limit:    queryInt(r, "limit", 20, 100),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	resp := skillsResponse{
		List:         make([]skillView, 0, len(page.Items)),
		ListType:     page.ListType,
		SnapshotDate: optionalString(page.SnapshotDate),
		Total:        page.Total,
		Source:       skillsSourceName,
	}
	for _, item := range page.Items {
		resp.List = append(resp.List, skillView{
			SkillItem: item,
			SkillURL:  optionalString(item.SkillURL()),
			RepoURL:   optionalString(item.RepoURL()),
		})
	}
	if resp.Total == 0 {
		resp.Total = len(resp.List)
	}
	httpinfra.WriteJSON(w, resp)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
