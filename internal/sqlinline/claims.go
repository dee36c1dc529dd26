package sqlinline

// Claim templates take the table, status column and error column as
// fmt verbs %[1]s, %[2]s and %[3]s. The marker identifies the template.

// QClaimCompareAndSwapTmpl moves one row to $3 when its status is in $2.
const QClaimCompareAndSwapTmpl = `--sql d5322f8a-e196-4766-9bed-69da70732512
update %[1]s
set %[2]s = $3::text,
    %[3]s = $4::text,
    updated_at = now()
where id = $1::uuid
  and %[2]s = any($2::text[]);
`

// QClaimRecoverStaleTmpl resets a working row that was last updated before $3.
const QClaimRecoverStaleTmpl = `--sql 5c3f453b-3f68-431d-b15f-a81ba5140177
update %[1]s
set %[2]s = $4::text,
    %[3]s = $5::text,
    updated_at = now()
where id = $1::uuid
  and %[2]s = $2::text
  and updated_at < $3::timestamptz;
`

const QClaimSnapshotTmpl = `--sql 722965a2-6dd0-485b-a849-4706bb27a5e6
select %[2]s, updated_at
from %[1]s
where id = $1::uuid;
`
