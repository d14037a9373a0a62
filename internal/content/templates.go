package content

// Fixed typographic templates. These are assets of the service, not
// user-configurable; user styling belongs in submitted HTML.

const markdownTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
    line-height: 1.6;
    color: #333;
    max-width: 800px;
    margin: 0 auto;
    padding: 20px;
  }
  h1, h2, h3, h4, h5, h6 {
    margin-top: 24px;
    margin-bottom: 16px;
    font-weight: 600;
    line-height: 1.25;
  }
  h1 { font-size: 2em; border-bottom: 1px solid #eaecef; padding-bottom: 0.3em; }
  h2 { font-size: 1.5em; border-bottom: 1px solid #eaecef; padding-bottom: 0.3em; }
  code {
    background-color: #f6f8fa;
    border-radius: 3px;
    padding: 2px 6px;
    font-family: 'Courier New', monospace;
  }
  pre {
    background-color: #f6f8fa;
    border-radius: 6px;
    padding: 16px;
    overflow: auto;
  }
  pre code {
    background-color: transparent;
    padding: 0;
  }
  blockquote {
    border-left: 4px solid #dfe2e5;
    color: #6a737d;
    padding-left: 16px;
    margin: 0;
  }
  table {
    border-collapse: collapse;
    width: 100%%;
  }
  table th, table td {
    border: 1px solid #dfe2e5;
    padding: 8px 12px;
  }
  table th {
    background-color: #f6f8fa;
    font-weight: 600;
  }
  img {
    max-width: 100%%;
    height: auto;
  }
  a {
    color: #0366d6;
    text-decoration: none;
  }
</style>
</head>
<body>
%s
</body>
</html>`

const textTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  body {
    font-family: 'Courier New', monospace;
    white-space: pre-wrap;
    word-wrap: break-word;
    padding: 20px;
    line-height: 1.5;
  }
</style>
</head>
<body>%s</body>
</html>`
