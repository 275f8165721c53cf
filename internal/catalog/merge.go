package catalog

import (
	"sort"
	"strconv"
	"strings"

	"moviestream/catalogservice/internal/domain"
)

// Union concatenates provider lists in argument order. Order matters: the
// dedup passes keep or prefer earlier entries, so the primary provider's
// list goes first.
func Union(lists ...[]domain.Movie) []domain.Movie {
	total := 0
	for _, list := range lists {
		total += len(list)
	}
	merged := make([]domain.Movie, 0, total)
	for _, list := range lists {
		merged = append(merged, list...)
	}
	return merged
}

// DedupFirstSeen keeps the first occurrence per identifier. Used by the page
// and genre flows where the primary's record shape is preferred wholesale.
func DedupFirstSeen(movies []domain.Movie) []domain.Movie {
	if len(movies) < 2 {
		return movies
	}
	seen := make(map[string]struct{}, len(movies))
	deduped := make([]domain.Movie, 0, len(movies))
	for _, movie := range movies {
		key := dedupeKey(movie)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, movie)
	}
	return deduped
}

// DedupMaxSeeds keeps, per identifier, the record whose best torrent has the
// most seeds. A later record replaces an earlier one only with a strictly
// higher count, so on equal seeds the earlier entry wins. Relative order of
// the surviving records follows first appearance.
func DedupMaxSeeds(movies []domain.Movie) []domain.Movie {
	if len(movies) < 2 {
		return movies
	}
	position := make(map[string]int, len(movies))
	deduped := make([]domain.Movie, 0, len(movies))
	for _, movie := range movies {
		key := dedupeKey(movie)
		if idx, exists := position[key]; exists {
			if movie.MaxSeeds() > deduped[idx].MaxSeeds() {
				deduped[idx] = movie
			}
			continue
		}
		position[key] = len(deduped)
		deduped = append(deduped, movie)
	}
	return deduped
}

// dedupeKey identifies a movie across providers. The imdb code is canonical;
// records without one fall back to a normalized title plus year.
func dedupeKey(movie domain.Movie) string {
	if code := strings.ToLower(strings.TrimSpace(movie.ImdbCode)); code != "" {
		return "imdb:" + code
	}
	return "title:" + TitleKey(movie.Title) + ":" + strconv.Itoa(movie.Year)
}

// SortMovies orders movies by the requested field. Ties fall through to
// title, then imdb code, so equal inputs always produce the same order.
func SortMovies(movies []domain.Movie, sortBy domain.SortBy, sortOrder domain.SortOrder) {
	sort.Slice(movies, func(i, j int) bool {
		cmp := compareMovies(movies[i], movies[j], sortBy)
		if sortOrder == domain.SortOrderAsc {
			return cmp < 0
		}
		return cmp > 0
	})
}

func compareMovies(left, right domain.Movie, sortBy domain.SortBy) int {
	switch sortBy {
	case domain.SortByTitle:
		if cmp := strings.Compare(TitleKey(left.Title), TitleKey(right.Title)); cmp != 0 {
			// Inverted so the default desc order still reads A to Z.
			return -cmp
		}
	case domain.SortByYear:
		if cmp := compareInt(left.Year, right.Year); cmp != 0 {
			return cmp
		}
	case domain.SortBySeeds:
		if cmp := compareInt(left.MaxSeeds(), right.MaxSeeds()); cmp != 0 {
			return cmp
		}
	default:
		if cmp := compareFloat64(left.Rating, right.Rating); cmp != 0 {
			return cmp
		}
	}
	if cmp := strings.Compare(TitleKey(left.Title), TitleKey(right.Title)); cmp != 0 {
		return -cmp
	}
	return -strings.Compare(left.ImdbCode, right.ImdbCode)
}

func compareInt(left, right int) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func compareFloat64(left, right float64) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}
