package model

import (
	"strings"
	"time"
)

// Place はユーザーが共有する場所（画像とメタデータ）を表す。
type Place struct {
	ID          PlaceID
	Name        string
	Location    string
	Description string
	MediaRef    string
	SourceURL   string
	Title       string
	LikedBy     []UserID
	AuthorID    UserID
	Author      *UserSnapshot // 一覧・詳細取得時にJOINで解決される
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LikedByUser は指定ユーザーがいいね済みかどうかを返す。
func (p *Place) LikedByUser(id UserID) bool {
	for _, liker := range p.LikedBy {
		if liker == id {
			return true
		}
	}
	return false
}

// LikeCount はいいね数を返す。
func (p *Place) LikeCount() int {
	return len(p.LikedBy)
}

// PlaceFields は作成・編集フォームから送信されるメタデータ。
type PlaceFields struct {
	Name        string
	Location    string
	Description string
	SourceURL   string
	Title       string
}

// Trimmed は各フィールドの前後の空白を除去したコピーを返す。
func (f PlaceFields) Trimmed() PlaceFields {
	return PlaceFields{
		Name:        strings.TrimSpace(f.Name),
		Location:    strings.TrimSpace(f.Location),
		Description: strings.TrimSpace(f.Description),
		SourceURL:   strings.TrimSpace(f.SourceURL),
		Title:       strings.TrimSpace(f.Title),
	}
}

// PlacePatch は場所の更新内容を表す。
// MediaRefがnilの場合は保存済みの画像参照を維持する。
type PlacePatch struct {
	Fields   PlaceFields
	MediaRef *string
}
