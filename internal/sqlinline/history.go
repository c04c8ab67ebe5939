package sqlinline

const QEnsureHistorySchema = `--sql d1a4682a-43cc-43d4-832d-1138b23d3ea4
create table if not exists job_history (
  job_id        text primary key,
  topic         text not null default '',
  tone          text not null default '',
  status        text not null default '',
  title         text not null default '',
  download_url  text not null default '',
  error         text not null default '',
  submitted_at  timestamptz not null default now(),
  updated_at    timestamptz not null default now()
);
`

const QUpsertHistory = `--sql d18d91e7-82d0-4dda-b958-2bf9058f2005
insert into job_history(job_id, topic, tone, status, title, download_url, error, submitted_at, updated_at)
values ($1::text, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::timestamptz, $9::timestamptz)
on conflict (job_id) do update set
  topic        = coalesce(nullif(excluded.topic, ''), job_history.topic),
  tone         = coalesce(nullif(excluded.tone, ''), job_history.tone),
  status       = excluded.status,
  title        = coalesce(nullif(excluded.title, ''), job_history.title),
  download_url = coalesce(nullif(excluded.download_url, ''), job_history.download_url),
  error        = excluded.error,
  updated_at   = excluded.updated_at;
`

const QSelectHistory = `--sql 65155fb1-561b-4139-9e17-c61029c0c916
select job_id, topic, tone, status, title, download_url, error, submitted_at, updated_at
from job_history
where job_id = $1::text
limit 1;
`

const QListHistory = `--sql 67f95b10-48d7-4f59-9447-c6a75b456a87
select job_id, topic, tone, status, title, download_url, error, submitted_at, updated_at
from job_history
order by submitted_at desc, job_id
limit $1::int;
`

const QDeleteHistory = `--sql 8da87184-c4d8-43ec-bb52-7df342987ec1
delete from job_history
where job_id = $1::text;
`
