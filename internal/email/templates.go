package email

const approvalSubjectTemplate = `Campaign "{{ campaign.name }}" needs your approval`

const approvalTextTemplate = `Hi {{ owner.name | fallback: "there" }},

The {{ campaign.type }} campaign "{{ campaign.name }}" in {{ workspace.name }} is waiting for review.

Review it at {{ app_url }}/campaigns/{{ campaign.id }}
`

const approvalHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <h2>Approval requested</h2>
    <p>Hi {{ owner.name | fallback: "there" | escape }},</p>
    <p>The {{ campaign.type | escape }} campaign <strong>{{ campaign.name | escape }}</strong> in {{ workspace.name | escape }} is waiting for your review.</p>
    <p><a href="{{ app_url }}/campaigns/{{ campaign.id }}" class="button">Review campaign</a></p>
    <div class="footer">
        <p>You receive this because approval is required for campaigns in this workspace.</p>
    </div>
</body>
</html>`

const reminderSubjectTemplate = `{{ count }} to-do{% if count != 1 %}s{% endif %} past due`

const reminderTextTemplate = `Hi {{ name | fallback: "there" }},

These to-dos are past due:
{% for todo in todos %}- {{ todo.text }} (due {{ todo.due }})
{% endfor %}
{{ app_url }}/todos
`

const reminderHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        li { margin-bottom: 6px; }
        .due { color: #b00020; font-size: 12px; }
    </style>
</head>
<body>
    <h2>Past-due to-dos</h2>
    <p>Hi {{ name | fallback: "there" | escape }},</p>
    <ul>
    {% for todo in todos %}<li>{{ todo.text | escape }} <span class="due">due {{ todo.due }}</span></li>
    {% endfor %}</ul>
    <p><a href="{{ app_url }}/todos">Open your to-dos</a></p>
</body>
</html>`
