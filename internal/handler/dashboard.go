package handler

import (
	"crypto/subtle"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/squadz/internal/model"
)

// SquadLister はダッシュボードが必要とするレジストリのインターフェース。
type SquadLister interface {
	ListSquads() []model.Squad
}

// SessionCounter はセッション数の取得に必要なインターフェース。
type SessionCounter interface {
	Count() int
}

// DashboardHandler はパスワード保護された管理ダッシュボードのハンドラー。
// 読み取り専用のHTMLビューで、スクワッドとメンバーの一覧を表示する。
// 格納されている名前はサニタイズ済みだが、テンプレートの自動エスケープにも依存する。
type DashboardHandler struct {
	lister   SquadLister
	sessions SessionCounter
	password string
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(lister SquadLister, sessions SessionCounter, password string) *DashboardHandler {
	return &DashboardHandler{
		lister:   lister,
		sessions: sessions,
		password: password,
	}
}

// dashboardData はダッシュボードテンプレートに渡すデータ。
type dashboardData struct {
	Squads       []model.Squad
	TotalMembers int
	SessionCount int
}

// Page はダッシュボードHTMLページを返す。
// パスワードが一致しない場合はログインフォームを表示する。
// GET /
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	supplied := r.URL.Query().Get("password")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.password)) != 1 {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := loginTemplate.Execute(w, nil); err != nil {
			slog.Error("failed to render login page", slog.String("error", err.Error()))
		}
		return
	}

	squads := h.lister.ListSquads()
	totalMembers := 0
	for i := range squads {
		totalMembers += len(squads[i].Members)
	}

	data := dashboardData{
		Squads:       squads,
		TotalMembers: totalMembers,
		SessionCount: h.sessions.Count(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		slog.Error("failed to render dashboard", slog.String("error", err.Error()))
	}
}

// loginTemplate はログインフォームのテンプレート。
var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Squadz Dashboard - Login</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            color: #eee;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
        }
        .login-card {
            background: #16213e;
            border-radius: 12px;
            padding: 2rem;
            box-shadow: 0 4px 6px rgba(0,0,0,0.3);
            text-align: center;
            max-width: 400px;
            width: 90%;
        }
        h1 { color: #4ade80; margin-bottom: 1rem; }
        p { color: #888; margin-bottom: 1.5rem; }
        input {
            width: 100%;
            padding: 0.75rem;
            margin-bottom: 1rem;
            border: none;
            border-radius: 8px;
            background: #0f3460;
            color: #fff;
            font-size: 1rem;
        }
        button {
            width: 100%;
            padding: 0.75rem;
            border: none;
            border-radius: 8px;
            background: #4ade80;
            color: #000;
            font-weight: bold;
            cursor: pointer;
            font-size: 1rem;
        }
        button:hover { background: #22c55e; }
    </style>
</head>
<body>
    <div class="login-card">
        <h1>🎯 Squadz Dashboard</h1>
        <p>Enter password to view squads</p>
        <form method="GET">
            <input type="password" name="password" placeholder="Password" autofocus>
            <button type="submit">Login</button>
        </form>
    </div>
</body>
</html>`))

// dashboardTemplate はダッシュボード本体のテンプレート。
var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Squadz Dashboard</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            color: #eee;
            min-height: 100vh;
            padding: 2rem;
        }
        .container { max-width: 1200px; margin: 0 auto; }
        h1 { font-size: 2rem; margin-bottom: 0.5rem; color: #4ade80; }
        .subtitle { color: #888; margin-bottom: 2rem; }
        .stats {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 1rem;
            margin-bottom: 2rem;
        }
        .stat-card {
            background: #16213e;
            border-radius: 12px;
            padding: 1.5rem;
            text-align: center;
            box-shadow: 0 4px 6px rgba(0,0,0,0.3);
        }
        .stat-value { font-size: 2.5rem; font-weight: bold; color: #4ade80; }
        .stat-label { color: #888; margin-top: 0.5rem; }
        .squad-card {
            background: #16213e;
            border-radius: 12px;
            padding: 1.5rem;
            margin-bottom: 1rem;
            box-shadow: 0 4px 6px rgba(0,0,0,0.3);
        }
        .squad-card h3 { color: #4ade80; margin-bottom: 1rem; }
        .squad-card p { margin: 0.5rem 0; }
        code { background: #0f3460; padding: 0.2rem 0.5rem; border-radius: 4px; font-family: monospace; }
        .join-code { font-size: 1.2rem; color: #fbbf24; background: #1e3a5f; }
        table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
        th, td { padding: 0.75rem; text-align: left; border-bottom: 1px solid #2a3f5f; }
        th { color: #888; font-weight: normal; }
        .empty { text-align: center; padding: 3rem; color: #888; background: #16213e; border-radius: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>🎯 Squadz Dashboard</h1>
        <p class="subtitle">Live squad and member overview</p>
        <div class="stats">
            <div class="stat-card">
                <div class="stat-value">{{len .Squads}}</div>
                <div class="stat-label">Squads</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{.TotalMembers}}</div>
                <div class="stat-label">Members</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{.SessionCount}}</div>
                <div class="stat-label">Active Sessions</div>
            </div>
        </div>
        {{range .Squads}}
        <div class="squad-card">
            <h3>🎯 {{.Name}}</h3>
            <p><strong>Join Code:</strong> <code class="join-code">{{.JoinCode}}</code></p>
            <p><strong>Squad ID:</strong> <code>{{.SquadID}}</code></p>
            <p><strong>Members:</strong> {{len .Members}}</p>
            <table>
                <thead>
                    <tr><th>Name</th><th>ID</th><th>Role</th></tr>
                </thead>
                <tbody>
                    {{range .Members}}
                    <tr>
                        <td>{{.DisplayName}}</td>
                        <td><code>{{.MemberID}}</code></td>
                        <td>{{if .IsLeader}}👑 Leader{{else}}Member{{end}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{else}}
        <div class="empty">No squads created yet. Use the API or mobile app to create one!</div>
        {{end}}
    </div>
</body>
</html>`))
