// Package alerts decides which employee records raise an alert and delivers
// webhook notifications when a newly added employee does. Rules are
// "column op value" conditions; webhooks go to Teams, Slack, or generic HTTP
// targets.
package alerts
