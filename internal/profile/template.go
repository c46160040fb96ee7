package profile

// Template is the furbot.yaml written by "furbot init".
const Template = `# furbot behavior profile
version: "1"

bot:
  subreddit: furry_irl
  # The catalog rejects requests without a descriptive user agent.
  user_agent: "/r/Furry_irl FakeFurBot by reddit.com/u/CHANGEME"
  trigger: furbot search
  ack_phrase: good bot
  operator: CHANGEME
  source_url: https://github.com/vaisest/fakeFurBot

search:
  score_floor: 20
  tag_cutoff: 25
  query_term_limit: 40
  safe_markers: ["rating:s", "rating:safe"]
  fallback_cooldown: 1s

loop:
  reply_cooldown: 5s
  poll_interval: 10s
  backoff:
    server_error: 5m
    api_error: 1m
    unknown: 2m

sweep:
  enabled: true
  schedule: "@every 30m"
  page_size: 200
  error_backoff: 10m
`
