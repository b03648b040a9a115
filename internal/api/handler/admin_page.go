package handler

const adminPageHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>HelloReadme Admin</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #0d1117;
            min-height: 100vh;
            padding: 2rem;
        }
        .container { max-width: 640px; margin: 0 auto; }
        .card {
            background: white;
            border-radius: 12px;
            padding: 1.5rem 2rem;
            margin-bottom: 1.5rem;
        }
        h1 { color: #24292f; font-size: 1.6rem; margin-bottom: 0.25rem; }
        .subtitle { color: #57606a; margin-bottom: 1.25rem; }
        .form-group { margin-bottom: 0.9rem; }
        label { display: block; margin-bottom: 0.4rem; color: #24292f; font-weight: 500; }
        select, input[type="number"], input[type="text"] {
            width: 100%;
            padding: 0.6rem;
            border: 1px solid #d0d7de;
            border-radius: 6px;
            font-size: 1rem;
        }
        button {
            width: 100%;
            padding: 0.8rem;
            background: #2da44e;
            color: white;
            border: none;
            border-radius: 6px;
            font-size: 1rem;
            font-weight: 600;
            cursor: pointer;
        }
        button:disabled { opacity: 0.6; cursor: not-allowed; }
        .status { padding: 0.8rem; border-radius: 6px; margin-top: 1rem; display: none; }
        .status.success { background: #dafbe1; color: #116329; display: block; }
        .status.error { background: #ffebe9; color: #82071e; display: block; }
        .status.running { background: #fff8c5; color: #7d4e00; display: block; }
        .stats-row {
            display: flex;
            justify-content: space-between;
            padding: 0.4rem 0;
            border-bottom: 1px solid #eaeef2;
        }
        .quick-links { display: flex; gap: 0.75rem; flex-wrap: wrap; }
        .quick-links a {
            flex: 1;
            min-width: 120px;
            padding: 0.6rem;
            background: #f6f8fa;
            color: #24292f;
            text-decoration: none;
            border-radius: 6px;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">
            <h1>HelloReadme Admin</h1>
            <p class="subtitle">GitHub 项目采集与语义检索管理面板</p>

            <form id="collectForm">
                <div class="form-group">
                    <label for="type">采集方式</label>
                    <select id="type" name="type">
                        <option value="search">搜索 (search)</option>
                        <option value="user">用户 (user)</option>
                        <option value="org">组织 (org)</option>
                    </select>
                </div>
                <div class="form-group">
                    <label for="query">搜索词 / 用户名 / 组织名</label>
                    <input type="text" id="query" name="query" placeholder="留空使用默认搜索词">
                </div>
                <div class="form-group">
                    <label for="language">编程语言（仅搜索）</label>
                    <input type="text" id="language" name="language" placeholder="Go, Python ...">
                </div>
                <div class="form-group">
                    <label for="max_repos">最大项目数</label>
                    <input type="number" id="max_repos" name="max_repos" value="100" min="1" max="1000">
                </div>
                <button type="submit" id="submitBtn">开始采集</button>
            </form>

            <div id="status" class="status"></div>
            <div id="stats" style="display: none; margin-top: 1rem;"></div>
        </div>

        <div class="card">
            <h2 style="margin-bottom: 1rem;">快速链接</h2>
            <div class="quick-links">
                <a href="/api/v1/stats">系统统计</a>
                <a href="/api/v1/projects?per_page=10">项目列表</a>
                <a href="/api/v1/llm/providers">LLM 服务</a>
                <a href="/health">健康检查</a>
            </div>
        </div>
    </div>

    <script>
        const form = document.getElementById('collectForm');
        const submitBtn = document.getElementById('submitBtn');
        const statusDiv = document.getElementById('status');
        const statsDiv = document.getElementById('stats');

        function showResult(r) {
            statsDiv.style.display = 'block';
            statsDiv.innerHTML = ` + "`" + `
                <div class="stats-row"><span>采集总数</span><span>${r.total_collected}</span></div>
                <div class="stats-row"><span>新增</span><span>${r.new_projects}</span></div>
                <div class="stats-row"><span>更新</span><span>${r.updated_projects}</span></div>
                <div class="stats-row"><span>错误</span><span>${(r.errors || []).length}</span></div>
            ` + "`" + `;
        }

        async function poll() {
            const response = await fetch('/api/v1/collect/status');
            const data = await response.json();
            if (data.is_running) {
                setTimeout(poll, 2000);
                return;
            }
            submitBtn.disabled = false;
            submitBtn.textContent = '开始采集';
            if (data.last_result) {
                statusDiv.className = data.last_result.success ? 'status success' : 'status error';
                statusDiv.textContent = data.last_result.message;
                showResult(data.last_result);
            }
        }

        form.addEventListener('submit', async (e) => {
            e.preventDefault();

            const type = document.getElementById('type').value;
            const query = document.getElementById('query').value;
            const body = {
                type,
                language: document.getElementById('language').value,
                max_repos: parseInt(document.getElementById('max_repos').value),
            };
            if (type === 'user') body.username = query;
            else if (type === 'org') body.org = query;
            else body.query = query;

            submitBtn.disabled = true;
            submitBtn.textContent = '采集中...';
            statusDiv.className = 'status running';
            statusDiv.textContent = '正在采集，请稍候...';
            statsDiv.style.display = 'none';

            try {
                const response = await fetch('/api/v1/collect', {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: JSON.stringify(body)
                });
                const data = await response.json();
                if (!response.ok) {
                    statusDiv.className = 'status error';
                    statusDiv.textContent = data.error || '采集失败';
                    submitBtn.disabled = false;
                    submitBtn.textContent = '开始采集';
                    return;
                }
                poll();
            } catch (err) {
                statusDiv.className = 'status error';
                statusDiv.textContent = '网络错误: ' + err.message;
                submitBtn.disabled = false;
                submitBtn.textContent = '开始采集';
            }
        });
    </script>
</body>
</html>`
