package engine

import (
	"sort"

	"github.com/centrender/cheapfinder-api/internal/model"
)

// applyFilters 按固定顺序应用买家约束：评分、评价数、价格上限。
//
// 三个过滤条件相互独立，顺序不影响结果集，固定顺序只是为了
// 让任何带副作用的观测行为保持确定。阈值 <= 0 的过滤器跳过。
func applyFilters(listings []model.Listing, minRating float64, minReviews int, maxPrice float64) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if minRating > 0 && l.Rating < minRating {
			continue
		}
		if minReviews > 0 && l.Reviews < minReviews {
			continue
		}
		if maxPrice > 0 && l.Price > maxPrice {
			continue
		}
		out = append(out, l)
	}
	return out
}

// rank 按四级排序键做稳定排序：
//
//  1. 到手价升序
//  2. 评分降序
//  3. 评价数降序
//  4. 预计送达天数升序（未知 ETA 为大哨兵值，自然排最后）
//
// 四键全相等的元素保持合并时的原始顺序（稳定排序）。
func rank(listings []model.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i], listings[j]
		if a.LandedPrice != b.LandedPrice {
			return a.LandedPrice < b.LandedPrice
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Reviews != b.Reviews {
			return a.Reviews > b.Reviews
		}
		return a.EtaDays < b.EtaDays
	})
}
