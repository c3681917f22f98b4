package acquire

import (
	"testing"
)

var testEndpoints = Endpoints{BaseURL: "https://www.dcard.tw"}

func TestExtractFromDOM_ArticleElements(t *testing.T) {
	page := `<html><body>
		<article><a href="/f/jewelry/p/260000201"><h2>訂製鑽石戒指分享</h2></a></article>
		<article><a href="/f/jewelry/p/260000202"><div class="PostTitle">K金項鍊</div></a></article>
		<article><a href="/f/jewelry/p/260000201"><h2>重複</h2></a></article>
		<article><a href="/f/girl/p/260000203"><h2>別の論壇</h2></a></article>
	</body></html>`

	posts, err := extractFromDOM(page, "jewelry", testEndpoints, plainText{}, 30)
	if err != nil {
		t.Fatalf("extractFromDOM returned error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("len(posts) = %d, want 2", len(posts))
	}
	if posts[0].ID != "260000201" || posts[0].Title != "訂製鑽石戒指分享" {
		t.Errorf("first = %+v", posts[0])
	}
	if posts[1].Title != "K金項鍊" {
		t.Errorf("second title = %q", posts[1].Title)
	}
	if posts[0].URL != "https://www.dcard.tw/f/jewelry/p/260000201" {
		t.Errorf("URL = %q", posts[0].URL)
	}
	if posts[0].SourceStrategy != NameBrowser {
		t.Errorf("SourceStrategy = %q", posts[0].SourceStrategy)
	}
}

// TestExtractFromDOM_FallsBackToLinks は候補セレクタで記事が得られない場合に記事リンクを使うことを検証する。
func TestExtractFromDOM_FallsBackToLinks(t *testing.T) {
	page := `<html><body>
		<article><a href="/about">about</a></article>
		<div><a href="https://www.dcard.tw/f/jewelry/p/260000301">金工課程心得</a></div>
	</body></html>`

	posts, err := extractFromDOM(page, "jewelry", testEndpoints, plainText{}, 30)
	if err != nil {
		t.Fatalf("extractFromDOM returned error: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "金工課程心得" {
		t.Errorf("posts = %+v", posts)
	}
}

func TestExtractFromDOM_Limit(t *testing.T) {
	page := `<html><body>
		<a href="/f/jewelry/p/1"><h3>a</h3></a>
		<a href="/f/jewelry/p/2"><h3>b</h3></a>
		<a href="/f/jewelry/p/3"><h3>c</h3></a>
	</body></html>`

	posts, _ := extractFromDOM(page, "jewelry", testEndpoints, plainText{}, 2)
	if len(posts) != 2 {
		t.Errorf("len(posts) = %d, want 2", len(posts))
	}
}

func TestExtractFromDOM_NoPosts(t *testing.T) {
	posts, err := extractFromDOM(`<html><body><p>empty</p></body></html>`, "jewelry", testEndpoints, plainText{}, 30)
	if err != nil {
		t.Fatalf("extractFromDOM returned error: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("len(posts) = %d, want 0", len(posts))
	}
}

// TestExtractFromSource_PlaceholderTitles はページソースからの抽出で仮タイトルが付くことを検証する。
func TestExtractFromSource_PlaceholderTitles(t *testing.T) {
	page := `<script>window.__DATA__={}</script>
		<link href="/f/jewelry/p/999">
		<a class="x" href="/f/jewelry/p/260000401">...</a>
		<a href="/f/jewelry/p/260000401">dup</a>
		<a href="/f/jewelry/p/260000402"/>
		<a href="/f/girl/p/260000403">other</a>`

	posts := extractFromSource(page, "jewelry", testEndpoints, 30)
	if len(posts) != 2 {
		t.Fatalf("len(posts) = %d, want 2", len(posts))
	}
	if posts[0].Title != "文章 260000401" {
		t.Errorf("Title = %q, want placeholder", posts[0].Title)
	}
	if posts[1].ID != "260000402" {
		t.Errorf("second id = %q", posts[1].ID)
	}
	if posts[0].SourceStrategy != nameBrowserSource {
		t.Errorf("SourceStrategy = %q", posts[0].SourceStrategy)
	}
}

func TestExtractFromSource_Limit(t *testing.T) {
	page := ""
	for _, id := range []string{"1", "2", "3", "4"} {
		page += `<a href="/f/jewelry/p/` + id + `">x</a>`
	}
	if posts := extractFromSource(page, "jewelry", testEndpoints, 3); len(posts) != 3 {
		t.Errorf("len(posts) = %d, want 3", len(posts))
	}
}
