package mcpserver

// WorkItemContract describes the work item file format agents must follow
// when editing items by hand.
const WorkItemContract = `# Work Item Format

Every work item is a Markdown file named ` + "`<ID>-<slug>.md`" + ` in the items directory
(or the done directory once closed). It starts with a header block:

` + "```" + `markdown
---
id: TASK-0042                 # REQUIRED, prefix TASK, BUG or SPIKE plus a zero-padded number
type: task                    # REQUIRED, one of task, bug, spike
status: ready                 # REQUIRED, draft | ready | in-progress | blocked | done | dropped | archived
created: 2026-01-15           # REQUIRED, yyyy-MM-dd
updated: null                 # set on every status change
title: Short imperative title
priority: p2                  # OPTIONAL
owner: someone                # OPTIONAL
tags: []
related:
  specs: []                   # repository paths with a leading "/"
  adrs: []
  files: []
  prs: []                     # pull request URLs
  issues: []                  # issue URLs
  branches: []
githubSynced: 2026-01-16T09:30:00Z   # written by sync, do not edit
---

# TASK-0042 - Short imperative title

## Summary

## Acceptance criteria

## Notes
` + "```" + `

## Rules

1. Use the ` + "`add_link`" + ` and ` + "`remove_link`" + ` tools instead of editing related lists by hand;
   they normalize paths and drop duplicates.
2. Keys you do not recognise must be left in place. Key order is preserved on write.
3. Moving or renaming a file breaks inbound links; use the CLI ` + "`doc move`" + ` command,
   which rewrites them.
4. Encoding is UTF-8 with forward slashes in every path.
`
